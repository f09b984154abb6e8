package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/section-swap-api/internal/models"
)

func poolStudent(id, name, section string, desired ...string) models.Student {
	return models.Student{
		ID:              id,
		FullName:        name,
		CurrentSection:  section,
		DesiredSections: desired,
		Active:          true,
	}
}

func TestStudentPoolEligibility(t *testing.T) {
	pool := newStudentPool([]models.Student{
		poolStudent("s3", "Carol", "30", "10"),
		poolStudent("s1", "Alice", "10", "20"),
		{ID: "s4", FullName: "Dave", CurrentSection: "40"},
		{ID: "s5", FullName: "Eve", DesiredSections: []string{"10"}},
		poolStudent("s2", "Bob", "20", "30"),
	})

	require.Equal(t, 3, pool.size())
	assert.Equal(t, "s1", pool.students[0].ID)
	assert.Equal(t, "s2", pool.students[1].ID)
	assert.Equal(t, "s3", pool.students[2].ID)
	assert.Empty(t, pool.occupants("40"))
}

func TestStudentPoolDirectPartner(t *testing.T) {
	pool := newStudentPool([]models.Student{
		poolStudent("s1", "Alice", "10", "30"),
		poolStudent("s2", "Bob", "20", "30"),
		poolStudent("s3", "Carol", "20", "10"),
		poolStudent("s4", "Dana", "20", "10"),
	})

	partner := pool.directPartner("10", "20")
	require.NotNil(t, partner)
	// both s3 and s4 qualify; canonical order picks the lower ID
	assert.Equal(t, "s3", partner.ID)

	// alice occupies 10 but wants 30, so the reverse trade has no taker
	assert.Nil(t, pool.directPartner("20", "10"))
}

func TestStudentPoolDirectPartnerAnyOccupantQualifies(t *testing.T) {
	pool := newStudentPool([]models.Student{
		poolStudent("s1", "Alice", "10", "20"),
		poolStudent("s2", "Bob", "20", "10"),
	})

	// an occupant of the target desiring the requester's section is a
	// direct match in either direction
	partner := pool.directPartner("20", "10")
	require.NotNil(t, partner)
	assert.Equal(t, "s1", partner.ID)

	partner = pool.directPartner("10", "20")
	require.NotNil(t, partner)
	assert.Equal(t, "s2", partner.ID)
}

func TestFindRotationThreeStep(t *testing.T) {
	pool := newStudentPool([]models.Student{
		poolStudent("s1", "Alice", "10", "20", "30"),
		poolStudent("s2", "Bob", "20", "30", "40"),
		poolStudent("s3", "Carol", "30", "10", "40"),
	})
	bob := &pool.students[1]

	steps := pool.findRotation(bob, "30", resolverLimits{})
	require.Len(t, steps, 3)

	assert.Equal(t, "s2", steps[0].StudentID)
	assert.True(t, steps[0].IsRequester)
	assert.Equal(t, "20", steps[0].FromSection)
	assert.Equal(t, "30", steps[0].ToSection)

	assert.Equal(t, "s3", steps[1].StudentID)
	assert.Equal(t, "30", steps[1].FromSection)
	assert.Equal(t, "10", steps[1].ToSection)

	assert.Equal(t, "s1", steps[2].StudentID)
	assert.Equal(t, "10", steps[2].FromSection)
	assert.Equal(t, "20", steps[2].ToSection, "cycle closes into the requester's vacated seat")
}

func TestFindRotationClosesEverySection(t *testing.T) {
	pool := newStudentPool([]models.Student{
		poolStudent("s1", "Alice", "10", "20", "30"),
		poolStudent("s2", "Bob", "20", "30", "40"),
		poolStudent("s3", "Carol", "30", "10", "40"),
	})
	bob := &pool.students[1]

	steps := pool.findRotation(bob, "30", resolverLimits{})
	require.NotEmpty(t, steps)

	// per-section occupancy change must net to zero
	delta := map[string]int{}
	for _, step := range steps {
		delta[step.FromSection]--
		delta[step.ToSection]++
	}
	for section, d := range delta {
		assert.Zerof(t, d, "section %s gained or lost a seat", section)
	}
}

func TestFindRotationSkipsSelfTarget(t *testing.T) {
	pool := newStudentPool([]models.Student{
		poolStudent("s1", "Alice", "10", "10", "20"),
		poolStudent("s2", "Bob", "20", "10"),
	})
	alice := &pool.students[0]

	assert.Nil(t, pool.findRotation(alice, "10", resolverLimits{}))
	assert.Nil(t, pool.findRotation(alice, "", resolverLimits{}))
}

func TestFindRotationDepthBound(t *testing.T) {
	// four movers needed: r 10->20, s2 20->30, s3 30->40, s4 40->10
	students := []models.Student{
		poolStudent("s1", "Rin", "10", "20"),
		poolStudent("s2", "Sam", "20", "30"),
		poolStudent("s3", "Tia", "30", "40"),
		poolStudent("s4", "Uma", "40", "10"),
	}

	pool := newStudentPool(students)
	rin := &pool.students[0]

	assert.Nil(t, pool.findRotation(rin, "20", resolverLimits{maxDepth: 3, candidateCap: 5}),
		"a four mover chain is out of reach at depth three")

	steps := pool.findRotation(rin, "20", resolverLimits{maxDepth: 5, candidateCap: 5})
	require.Len(t, steps, 4)
	assert.Equal(t, "10", steps[3].ToSection)
}

func TestFindRotationCandidateCap(t *testing.T) {
	// six occupants of 20; only the last by ID wants back into 10
	students := []models.Student{
		poolStudent("s1", "Rin", "10", "20"),
		poolStudent("s2", "A", "20", "90"),
		poolStudent("s3", "B", "20", "91"),
		poolStudent("s4", "C", "20", "92"),
		poolStudent("s5", "D", "20", "93"),
		poolStudent("s6", "E", "20", "94"),
		poolStudent("s7", "F", "20", "10"),
	}

	pool := newStudentPool(students)
	rin := &pool.students[0]

	assert.Nil(t, pool.findRotation(rin, "20", resolverLimits{maxDepth: 5, candidateCap: 5}),
		"the closing mover ranks sixth and is truncated away")

	steps := pool.findRotation(rin, "20", resolverLimits{maxDepth: 5, candidateCap: 10})
	require.Len(t, steps, 2)
	assert.Equal(t, "s7", steps[1].StudentID)
}

func TestFindRotationDeterministic(t *testing.T) {
	students := []models.Student{
		poolStudent("s1", "Alice", "10", "20", "30"),
		poolStudent("s2", "Bob", "20", "30", "40"),
		poolStudent("s3", "Carol", "30", "10", "40"),
		poolStudent("s4", "Dana", "30", "10"),
	}

	var first []models.SwapStep
	for i := 0; i < 5; i++ {
		// shuffle insertion order by rotating the slice
		rotated := append(append([]models.Student{}, students[i%len(students):]...), students[:i%len(students)]...)
		pool := newStudentPool(rotated)

		var bob *models.Student
		for j := range pool.students {
			if pool.students[j].ID == "s2" {
				bob = &pool.students[j]
			}
		}
		require.NotNil(t, bob)

		steps := pool.findRotation(bob, "30", resolverLimits{})
		require.NotEmpty(t, steps)
		if first == nil {
			first = steps
			continue
		}
		assert.Equal(t, first, steps, "identical snapshots must resolve identically")
	}
}

func TestAnyMatchReducedDepth(t *testing.T) {
	pool := newStudentPool([]models.Student{
		poolStudent("s1", "Alice", "10", "20", "30"),
		poolStudent("s2", "Bob", "20", "30", "40"),
		poolStudent("s3", "Carol", "30", "10", "40"),
	})

	limits := resolverLimits{maxDepth: batchCheckerMaxDepth, candidateCap: defaultCandidateCap}
	for i := range pool.students {
		assert.Truef(t, pool.anyMatch(&pool.students[i], limits), "%s participates in the three way cycle", pool.students[i].FullName)
	}

	deep := newStudentPool([]models.Student{
		poolStudent("s1", "Rin", "10", "20"),
		poolStudent("s2", "Sam", "20", "30"),
		poolStudent("s3", "Tia", "30", "40"),
		poolStudent("s4", "Uma", "40", "10"),
	})
	rin := &deep.students[0]
	assert.False(t, deep.anyMatch(rin, limits), "the reduced depth checker misses the four mover chain")
	assert.True(t, deep.anyMatch(rin, resolverLimits{maxDepth: 5, candidateCap: 5}))
}
