package activity_test

import (
	"context"
	"testing"

	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/repository/mocks"
	"github.com/stretchr/testify/require"
)

func TestActivityService_LogAndList(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant1"
	sessionID := "sess1"

	repo := &mocks.ActivityRepository{}
	entry := &activity.ActivityEntry{
		SessionID:    &sessionID,
		ActivityType: activity.TypeSessionStarted,
		Summary:      "started",
	}

	repo.On("Log", ctx, tenantID, entry).Return(nil)
	repo.On("List", ctx, tenantID, activity.ListActivityOptions{SessionID: &sessionID, Limit: 50}).Return([]activity.ActivityEntry{}, nil)

	svc := activity.NewService(repo, nil)
	require.NoError(t, svc.LogActivity(ctx, tenantID, entry))
	require.False(t, entry.CreatedAt.IsZero())
	_, err := svc.GetRecentActivity(ctx, tenantID, activity.ListActivityOptions{SessionID: &sessionID})
	require.NoError(t, err)
}

func TestActivityService_LogRejectsEmpty(t *testing.T) {
	svc := activity.NewService(&mocks.ActivityRepository{}, nil)
	require.ErrorIs(t, svc.LogActivity(context.Background(), "tenant1", nil), activity.ErrInvalidInput)
	require.ErrorIs(t, svc.LogActivity(context.Background(), "tenant1", &activity.ActivityEntry{}), activity.ErrInvalidInput)
}
