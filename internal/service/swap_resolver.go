package service

import (
	"sort"

	"github.com/noah-isme/section-swap-api/internal/models"
)

// Rotation search bounds. The chain enumeration is combinatorial in depth
// and branching factor; truncating candidate lists keeps a single search a
// small constant amount of work at the cost of occasionally missing a
// rotation that exists only among lower-ranked candidates. The caps are
// tunable through MatchingConfig but the capped, first-found search stays
// intentionally non-exhaustive.
const (
	minRotationLength    = 2
	defaultMaxRotation   = 5
	defaultCandidateCap  = 5
	batchCheckerMaxDepth = 3
)

// resolverLimits carries the tunable caps into a single search.
type resolverLimits struct {
	maxDepth     int
	candidateCap int
}

func (l resolverLimits) normalized() resolverLimits {
	if l.maxDepth < minRotationLength {
		l.maxDepth = defaultMaxRotation
	}
	if l.candidateCap <= 0 {
		l.candidateCap = defaultCandidateCap
	}
	return l
}

// studentPool is an immutable snapshot of swap candidates for one search.
// Eligibility requires a current section and a non-empty desired list;
// ordering is canonical (ascending student ID) so results are deterministic
// for a fixed snapshot.
type studentPool struct {
	students  []models.Student
	bySection map[string][]*models.Student
}

func newStudentPool(students []models.Student) *studentPool {
	eligible := make([]models.Student, 0, len(students))
	for _, s := range students {
		if s.CurrentSection == "" || len(s.DesiredSections) == 0 {
			continue
		}
		eligible = append(eligible, s)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })

	pool := &studentPool{
		students:  eligible,
		bySection: make(map[string][]*models.Student),
	}
	for i := range pool.students {
		s := &pool.students[i]
		pool.bySection[s.CurrentSection] = append(pool.bySection[s.CurrentSection], s)
	}
	return pool
}

func (p *studentPool) size() int { return len(p.students) }

// occupants returns the students currently placed in section, in canonical
// order.
func (p *studentPool) occupants(section string) []*models.Student {
	return p.bySection[section]
}

// directPartner returns the first occupant of target desiring current, or
// nil when no two-party trade exists.
func (p *studentPool) directPartner(current, target string) *models.Student {
	for _, cand := range p.occupants(target) {
		if cand.WantsSection(current) {
			return cand
		}
	}
	return nil
}

// partialChain is one frontier entry of the rotation search: the steps taken
// so far, the section whose occupant has to move next, and the sections and
// students already consumed by the chain.
type partialChain struct {
	steps   []models.SwapStep
	open    string
	visited map[string]struct{}
	used    map[string]struct{}
}

func (c partialChain) extend(cand *models.Student, next string) partialChain {
	steps := make([]models.SwapStep, len(c.steps), len(c.steps)+1)
	copy(steps, c.steps)
	steps = append(steps, models.SwapStep{
		StudentID:   cand.ID,
		StudentName: cand.FullName,
		FromSection: c.open,
		ToSection:   next,
	})

	visited := make(map[string]struct{}, len(c.visited)+1)
	for section := range c.visited {
		visited[section] = struct{}{}
	}
	visited[next] = struct{}{}

	used := make(map[string]struct{}, len(c.used)+1)
	for id := range c.used {
		used[id] = struct{}{}
	}
	used[cand.ID] = struct{}{}

	return partialChain{steps: steps, open: next, visited: visited, used: used}
}

// findRotation searches for a closed chain that moves the requester into
// target while every section's seat count nets to zero. The chain is
// anchored: the requester always departs their current section for target as
// the first step, and the remaining movers must route the cycle back into
// the requester's vacated seat.
//
// The search is breadth first over partial chains; the FIFO frontier yields
// the shortest chain the capped enumeration can reach first, and within a
// depth the canonical candidate order decides ties.
func (p *studentPool) findRotation(requester *models.Student, target string, limits resolverLimits) []models.SwapStep {
	limits = limits.normalized()
	if target == "" || target == requester.CurrentSection {
		return nil
	}

	root := partialChain{
		steps: []models.SwapStep{{
			StudentID:   requester.ID,
			StudentName: requester.FullName,
			FromSection: requester.CurrentSection,
			ToSection:   target,
			IsRequester: true,
		}},
		open: target,
		visited: map[string]struct{}{
			requester.CurrentSection: {},
			target:                   {},
		},
		used: map[string]struct{}{requester.ID: {}},
	}

	frontier := []partialChain{root}
	for len(frontier) > 0 {
		chain := frontier[0]
		frontier = frontier[1:]

		if len(chain.steps) >= limits.maxDepth {
			continue
		}

		for _, cand := range p.chainCandidates(chain, limits.candidateCap) {
			for _, want := range cand.DesiredSections {
				if want == requester.CurrentSection {
					closing := models.SwapStep{
						StudentID:   cand.ID,
						StudentName: cand.FullName,
						FromSection: chain.open,
						ToSection:   want,
					}
					closed := make([]models.SwapStep, len(chain.steps), len(chain.steps)+1)
					copy(closed, chain.steps)
					return append(closed, closing)
				}
				if _, seen := chain.visited[want]; seen {
					continue
				}
				if len(chain.steps)+1 >= limits.maxDepth {
					// extending would leave no room for a closing mover
					continue
				}
				frontier = append(frontier, chain.extend(cand, want))
			}
		}
	}
	return nil
}

// chainCandidates lists occupants of the chain's open section not already in
// the chain, truncated to the candidate cap in canonical order.
func (p *studentPool) chainCandidates(chain partialChain, limit int) []*models.Student {
	out := make([]*models.Student, 0, limit)
	for _, cand := range p.occupants(chain.open) {
		if _, taken := chain.used[cand.ID]; taken {
			continue
		}
		out = append(out, cand)
		if len(out) == limit {
			break
		}
	}
	return out
}

// anyMatch reports whether any of the student's desired sections admits a
// direct partner or a rotation within the given limits. The batch checker
// calls this with a reduced depth cap, so a false here does not mean the
// full resolver would come up empty.
func (p *studentPool) anyMatch(s *models.Student, limits resolverLimits) bool {
	for _, target := range s.DesiredSections {
		if target == s.CurrentSection {
			continue
		}
		if p.directPartner(s.CurrentSection, target) != nil {
			return true
		}
		if steps := p.findRotation(s, target, limits); steps != nil {
			return true
		}
	}
	return false
}
