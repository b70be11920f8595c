package feed

import "math"

const earthRadiusKm = 6371

// Distance returns the great-circle distance in kilometers between two
// coordinates (haversine).
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	latDelta := toRadians(lat2 - lat1)
	lngDelta := toRadians(lng2 - lng1)

	a := math.Sin(latDelta/2)*math.Sin(latDelta/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(lngDelta/2)*math.Sin(lngDelta/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// AnnotateDistances fills in the distance-from-viewer field for content items
// carrying a location. Items without coordinates, and fillers, are left
// untouched. A missing viewer position is not an error; distances simply
// stay unset.
func AnnotateDistances(items []Item, viewerLat, viewerLng float64) {
	for i := range items {
		item := &items[i]
		if item.Kind != KindContent {
			continue
		}
		if item.Lat == 0 && item.Lng == 0 {
			continue
		}
		item.Distance = Distance(viewerLat, viewerLng, item.Lat, item.Lng)
	}
}
