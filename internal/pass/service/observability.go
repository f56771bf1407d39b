package service

import (
	"time"

	"memberpass/internal/pass/models"
	dErrors "memberpass/pkg/domain-errors"
)

func (s *Service) observeMint(start time.Time, pass *models.MemberPass, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveMint(start)
	if err != nil {
		s.metrics.IncrementMintFailure(string(dErrors.CodeOf(err)))
		return
	}
	s.metrics.IncrementMinted(pass.Tier.String())
}

func (s *Service) incrementEditionConflict(tier models.Tier) {
	if s.metrics != nil {
		s.metrics.IncrementEditionConflict(tier.String())
	}
}

func (s *Service) incrementCompensation(step string, ok bool) {
	if s.metrics != nil {
		s.metrics.IncrementCompensation(step, ok)
	}
}

func (s *Service) incrementVerification(err error) {
	if s.metrics != nil {
		s.metrics.IncrementVerification(outcome(err))
	}
}

func (s *Service) incrementAdmin(operation string, err error) {
	if s.metrics != nil {
		s.metrics.IncrementAdmin(operation, outcome(err))
	}
}
