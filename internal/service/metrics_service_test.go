package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grantos/grantos-api/internal/models"
)

func TestMetricsSnapshotCountsContractTransitions(t *testing.T) {
	svc := NewMetricsService()
	svc.ObserveContractTransition(models.ContractStatusDraft, models.ContractStatusUnderReview)
	svc.ObserveContractTransition(models.ContractStatusUnderReview, models.ContractStatusReviewed)

	snap := svc.Snapshot()
	require.Equal(t, uint64(2), snap.ContractTransitions)
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var svc *MetricsService
	svc.ObserveContractTransition(models.ContractStatusDraft, models.ContractStatusUnderReview)
	require.Equal(t, models.SystemMetrics{}, svc.Snapshot())
}
