package matching

import (
	"math"
	"sort"
	"strings"

	"github.com/kindredapp/kindred/internal/db"
)

// FindCandidates filters the given active users down to eligible candidates
// for the seeker. Pure function over in-memory data: callers fetch the
// active users and exclusion set from storage.
//
// A candidate is kept when all of the following hold:
//   - not the seeker, not in the exclusion set, ACTIVE state
//   - gender interest matches both ways
//   - each is inside the other's age range
//   - within the seeker's max distance (skipped when either location is missing)
//   - passes the seeker's one-way dealbreakers
//
// Result is sorted by distance to the seeker, stable for a given snapshot.
func FindCandidates(seeker *db.User, active []db.User, excluded map[string]struct{}) []db.User {
	candidates := make([]db.User, 0, len(active))
	for _, candidate := range active {
		if candidate.ID == seeker.ID {
			continue
		}
		if _, skip := excluded[candidate.ID]; skip {
			continue
		}
		if candidate.State != db.UserStateActive {
			continue
		}
		if !gendersCompatible(seeker, &candidate) {
			continue
		}
		if !agesCompatible(seeker, &candidate) {
			continue
		}
		if !withinDistance(seeker, &candidate) {
			continue
		}
		if !passesDealbreakers(seeker, &candidate) {
			continue
		}
		candidates = append(candidates, candidate)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return distanceTo(seeker, &candidates[i]) < distanceTo(seeker, &candidates[j])
	})
	return candidates
}

// gendersCompatible checks interest both ways: the seeker wants the
// candidate's gender and the candidate wants the seeker's.
func gendersCompatible(seeker, candidate *db.User) bool {
	if seeker.Gender == "" || candidate.Gender == "" {
		return false
	}
	return setContains(seeker.InterestedIn, candidate.Gender) &&
		setContains(candidate.InterestedIn, seeker.Gender)
}

// agesCompatible checks age ranges both ways.
func agesCompatible(seeker, candidate *db.User) bool {
	if seeker.Age == 0 || candidate.Age == 0 {
		return false // missing birth date
	}
	return candidate.Age >= seeker.MinAge && candidate.Age <= seeker.MaxAge &&
		seeker.Age >= candidate.MinAge && seeker.Age <= candidate.MaxAge
}

// withinDistance applies the seeker's radius. Users without a location are
// not filtered out.
func withinDistance(seeker, candidate *db.User) bool {
	if !hasLocation(seeker) || !hasLocation(candidate) {
		return true
	}
	return distanceTo(seeker, candidate) <= seeker.MaxDistanceKm
}

// passesDealbreakers applies the seeker's hard filters. One-way: the
// seeker's dealbreakers hide candidates from the seeker, never the reverse.
func passesDealbreakers(seeker, candidate *db.User) bool {
	return passesSet(seeker.DealbreakerSmoking, candidate.Smoking) &&
		passesSet(seeker.DealbreakerDrinking, candidate.Drinking) &&
		passesSet(seeker.DealbreakerKids, candidate.WantsKids)
}

// passesSet: empty set means no preference; otherwise the candidate's value
// must be in the set. An unanswered candidate fails an active dealbreaker.
func passesSet(set, value string) bool {
	if strings.TrimSpace(set) == "" {
		return true
	}
	return setContains(set, value)
}

func setContains(csv, value string) bool {
	if value == "" {
		return false
	}
	for _, item := range strings.Split(csv, ",") {
		if strings.EqualFold(strings.TrimSpace(item), value) {
			return true
		}
	}
	return false
}

func hasLocation(u *db.User) bool {
	return u.Lat != 0 || u.Lon != 0
}

func distanceTo(a, b *db.User) float64 {
	if !hasLocation(a) || !hasLocation(b) {
		return math.MaxFloat64
	}
	return haversineKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

const earthRadiusKm = 6371.0

// haversineKm calculates the great-circle distance between two points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
