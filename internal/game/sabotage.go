package game

import "github.com/park285/charades-server/internal/domain"

// DeploySabotage activates one of the round's offered actions.
//
// Rejections, in order: no active round, caller is not the director, grace
// period not over, limit reached, another sabotage not yet cleared, action
// not offered this round.
func DeploySabotage(s *domain.GameState, sabotageID, directorID string, at int64) (*domain.GameState, *domain.ActiveSabotage, error) {
	r := s.ActiveRound()
	if r == nil {
		return nil, nil, ErrRoundNotActive
	}
	if r.DirectorID != directorID {
		return nil, nil, ErrUnauthorized
	}
	if at-r.StartTime < s.GameConfig.GracePeriodMs {
		return nil, nil, ErrGracePeriodActive
	}
	if r.SabotagesDeployedCount >= s.GameConfig.MaxSabotages {
		return nil, nil, ErrMaxSabotagesReached
	}
	if r.CurrentSabotage != nil {
		return nil, nil, ErrSabotageAlreadyActive
	}
	var action *domain.SabotageAction
	for i := range r.AvailableSabotages {
		if r.AvailableSabotages[i].ID == sabotageID {
			action = &r.AvailableSabotages[i]
			break
		}
	}
	if action == nil {
		return nil, nil, ErrSabotageNotFound
	}

	active := &domain.ActiveSabotage{
		Action:     *action,
		DeployedBy: directorID,
		DeployedAt: at,
		EndsAt:     at + action.DurationMs,
	}
	out := s.Clone()
	out.CurrentRound.CurrentSabotage = active
	out.CurrentRound.SabotagesDeployedCount++
	ret := *active
	return out, &ret, nil
}

// ExpireSabotage clears the current sabotage only if it is the given
// deployment. The bool reports whether anything changed.
func ExpireSabotage(s *domain.GameState, key domain.SabotageKey) (*domain.GameState, bool) {
	r := s.ActiveRound()
	if r == nil || r.CurrentSabotage == nil || r.CurrentSabotage.Key() != key {
		return s, false
	}
	out := s.Clone()
	out.CurrentRound.CurrentSabotage = nil
	return out, true
}
