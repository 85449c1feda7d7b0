package runner

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	"movetrack/internal/events/store"
	"movetrack/internal/events/variants"
	"movetrack/internal/locations"
	"movetrack/internal/platform/logger"
	id "movetrack/pkg/domain"
)

// step is one event of a determinism scenario.
type step struct {
	variant string
	offset  time.Duration
	details func(locs []id.LocationID) map[string]any
}

var moveSteps = []step{
	{"MoveLockout", 10 * time.Minute, func(l []id.LocationID) map[string]any {
		return map[string]any{"from_location_id": l[1].String()}
	}},
	{"MoveRedirect", 20 * time.Minute, func(l []id.LocationID) map[string]any {
		return map[string]any{"to_location_id": l[2].String()}
	}},
	{"MoveNotifyPremisesOfEta", 30 * time.Minute, func([]id.LocationID) map[string]any {
		return map[string]any{"expected_at": "2020-01-20T14:00:00Z"}
	}},
	{"MoveRedirect", 40 * time.Minute, func(l []id.LocationID) map[string]any {
		return map[string]any{"to_location_id": l[1].String()}
	}},
	{"MoveLodgingStart", 40 * time.Minute, func(l []id.LocationID) map[string]any {
		return map[string]any{"location_id": l[2].String(), "start_date": "2020-01-20", "end_date": "2020-01-21"}
	}},
	{"MoveNotifyPremisesOfEta", 50 * time.Minute, func([]id.LocationID) map[string]any {
		return map[string]any{"expected_at": "2020-01-20T15:30:00Z"}
	}},
}

type scenario struct {
	runner *Runner
	locs   []id.LocationID
	move   *entities.Move
	t0     time.Time
}

func newScenario(t *testing.T) *scenario {
	t.Helper()
	ctx := context.Background()
	locStore := locations.NewInMemory()
	locs := make([]id.LocationID, 3)
	for i := range locs {
		locs[i] = id.LocationID(uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(i)}))
		require.NoError(t, locStore.Save(ctx, &locations.Location{ID: locs[i], Key: "L" + string(rune('A'+i))}))
	}
	reg, err := variants.Default()
	require.NoError(t, err)
	r := New(reg, store.NewInMemory(), locations.NewResolver(locStore), WithLogger(logger.Discard()))

	m := &entities.Move{ID: id.EntityID(uuid.MustParse("7d1a2c8e-0000-4000-8000-000000000001")), State: entities.MoveProposed, FromLocationID: locs[0]}
	require.NoError(t, r.Create(ctx, m))
	return &scenario{runner: r, locs: locs, move: m, t0: time.Date(2020, 1, 20, 9, 0, 0, 0, time.UTC)}
}

// run applies steps in the given order and returns the persisted snapshot.
func (sc *scenario) run(t *testing.T, order []int) string {
	t.Helper()
	ctx := context.Background()
	for _, i := range order {
		st := moveSteps[i]
		_, _, err := sc.runner.Apply(ctx, sc.move.Ref(), models.Intent{
			Variant:    st.variant,
			OccurredAt: sc.t0.Add(st.offset),
			Details:    st.details(sc.locs),
		})
		require.NoError(t, err, st.variant)
	}
	v, err := sc.runner.Verify(ctx, sc.move.Ref())
	require.NoError(t, err)
	require.True(t, v.Matches, "persisted state must equal replay")
	raw, err := entities.Encode(v.Persisted)
	require.NoError(t, err)
	return string(raw)
}

func TestPersistedStateIndependentOfArrivalOrder(t *testing.T) {
	forward := []int{0, 1, 2, 3, 4, 5}
	reversed := slices.Clone(forward)
	slices.Reverse(reversed)
	interleaved := []int{2, 0, 5, 1, 3, 4}

	want := newScenario(t).run(t, forward)
	require.Equal(t, want, newScenario(t).run(t, interleaved))

	require.Equal(t, want, newScenario(t).run(t, reversed))
}
