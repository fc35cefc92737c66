package service

import "github.com/finloop/loandesk/internal/domain"

// StageResult is what one specialist stage hands back to the dispatcher.
type StageResult struct {
	Response string
	NextStep domain.NextStep
	Risk     *domain.RiskReport
	Decision *domain.DecisionReport
}
