package derby

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/derby-console/internal/models"
)

var (
	scouts = models.RacingClass{ID: 1, Name: "Scouts"}
	family = models.RacingClass{ID: 2, Name: "Family"}
)

func generateRacers(n int, class models.RacingClass, startingCar int) []models.Racer {
	out := make([]models.Racer, n)
	for i := range out {
		car := startingCar + i
		out[i] = models.Racer{
			CarNumber:     car,
			Name:          fmt.Sprintf("car %d", car),
			RacingClassID: class.ID,
			RacingClass:   class,
		}
	}
	return out
}

func TestGroupByClass(t *testing.T) {
	tenScouts := generateRacers(10, scouts, 1)
	fourFamily := generateRacers(4, family, 100)
	threeScouts := generateRacers(3, scouts, 1)

	type want struct {
		class        string
		racers       int
		byes         int
		startingHeat int
		groupHeats   int
	}
	cases := []struct {
		name      string
		racers    []models.Racer
		lanes     int
		want      []want
		wantHeats int
	}{
		{
			name:   "scouts and family on five lanes",
			racers: append(append([]models.Racer{}, fourFamily...), tenScouts...),
			lanes:  5,
			want: []want{
				{"Scouts", 10, 0, 1, 2},
				{"Family", 4, 1, 3, 1},
			},
			wantHeats: 3,
		},
		{
			name:      "three scouts on seven lanes",
			racers:    threeScouts,
			lanes:     7,
			want:      []want{{"Scouts", 3, 4, 1, 1}},
			wantHeats: 1,
		},
		{
			name:      "single lane never needs byes",
			racers:    threeScouts,
			lanes:     1,
			want:      []want{{"Scouts", 3, 0, 1, 3}},
			wantHeats: 3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			groups, err := GroupByClass(tc.racers, tc.lanes)
			require.NoError(t, err)
			require.Len(t, groups, len(tc.want))
			for i, w := range tc.want {
				g := groups[i]
				assert.Equal(t, w.class, g.Class.Name)
				assert.Len(t, g.Racers, w.racers)
				assert.Equal(t, w.byes, g.NumByes)
				assert.Equal(t, w.startingHeat, g.StartingHeat)
				assert.Equal(t, w.groupHeats, g.GroupHeats)
			}
			assert.Equal(t, tc.wantHeats, TotalHeats(groups))
		})
	}
}

func TestGroupByClass_ByeCountIsSmallestPadding(t *testing.T) {
	for lanes := 1; lanes <= 8; lanes++ {
		for n := 1; n <= 30; n++ {
			groups, err := GroupByClass(generateRacers(n, scouts, 1), lanes)
			require.NoError(t, err)
			b := groups[0].NumByes
			if (n+b)%lanes != 0 || b < 0 || b >= lanes {
				t.Fatalf("n=%d lanes=%d: %d byes is not the smallest padding", n, lanes, b)
			}
		}
	}
}

func TestGroupByClass_OrdersByGradeThenCar(t *testing.T) {
	g1, g2 := 1, 2
	racers := []models.Racer{
		{CarNumber: 9, RacingClassID: 1},
		{CarNumber: 3, RacingClassID: 1, GradeID: &g2},
		{CarNumber: 7, RacingClassID: 1, GradeID: &g1},
		{CarNumber: 2, RacingClassID: 1},
		{CarNumber: 5, RacingClassID: 1, GradeID: &g1},
	}
	groups, err := GroupByClass(racers, 4)
	require.NoError(t, err)
	var cars []int
	for _, r := range groups[0].Racers {
		cars = append(cars, r.CarNumber)
	}
	assert.Equal(t, []int{5, 7, 3, 2, 9}, cars)
}

func TestGroupByClass_RejectsNoLanes(t *testing.T) {
	_, err := GroupByClass(generateRacers(3, scouts, 1), 0)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("want ErrConfiguration, got %v", err)
	}
}

func TestPlaceByes(t *testing.T) {
	racers := append(generateRacers(10, scouts, 1), generateRacers(4, family, 100)...)
	groups, err := GroupByClass(racers, 5)
	require.NoError(t, err)

	byes, err := PlaceByes(groups, 5)
	require.NoError(t, err)
	require.Len(t, byes, 1)

	b := byes[0]
	assert.True(t, b.IsBye())
	assert.Equal(t, 3, b.Bye.Heat)
	assert.Equal(t, 5, b.Bye.Lane)
	assert.Equal(t, ByeCarNumberBase+1, b.CarNumber)
	assert.Equal(t, "[BYE] Family #1", b.Name)
	assert.Equal(t, family.ID, b.RacingClassID)
}

func TestPlaceByes_FillsLastLaneFirst(t *testing.T) {
	// 13 racers on 6 lanes: 5 byes over 3 heats
	groups, err := GroupByClass(generateRacers(13, scouts, 1), 6)
	require.NoError(t, err)
	require.Equal(t, 5, groups[0].NumByes)
	require.Equal(t, 3, groups[0].GroupHeats)

	byes, err := PlaceByes(groups, 6)
	require.NoError(t, err)

	type slot struct{ heat, lane int }
	var got []slot
	seen := map[slot]bool{}
	for _, b := range byes {
		s := slot{b.Bye.Heat, b.Bye.Lane}
		require.False(t, seen[s], "two byes share heat %d lane %d", s.heat, s.lane)
		seen[s] = true
		got = append(got, s)
	}
	assert.Equal(t, []slot{{1, 6}, {2, 6}, {3, 6}, {1, 5}, {2, 5}}, got)
}
