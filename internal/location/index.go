package location

import (
	"sort"

	"github.com/asim/quadtree"

	"github.com/stuartshay/gobebop/internal/calculator"
)

// Neighbour is a record with its distance from a query point.
type Neighbour struct {
	Record     Record
	DistanceKm float64
}

// Index is a quadtree over record positions for radius queries.
type Index struct {
	tree *quadtree.QuadTree
}

// NewIndex builds a world-covering index over records.
func NewIndex(records []Record) *Index {
	center := quadtree.NewPoint(0, 0, nil)
	half := quadtree.NewPoint(90, 180, nil)
	tree := quadtree.New(quadtree.NewAABB(center, half), 0, nil)

	for i := range records {
		r := records[i]
		tree.Insert(quadtree.NewPoint(r.Position.Lat(), r.Position.Lon(), &r))
	}
	return &Index{tree: tree}
}

// Within returns records no further than radiusM metres from (lat, lon),
// closest first.
func (idx *Index) Within(lat, lon, radiusM float64) []Neighbour {
	center := quadtree.NewPoint(lat, lon, nil)
	boundary := quadtree.NewAABB(center, center.HalfPoint(radiusM))
	origin := calculator.NewPoint(lat, lon)

	var out []Neighbour
	for _, pt := range idx.tree.Search(boundary) {
		r, ok := pt.Data().(*Record)
		if !ok {
			continue
		}
		// the bounding box is approximate
		d := calculator.DistanceKm(origin, r.Position)
		if d*1000 > radiusM {
			continue
		}
		out = append(out, Neighbour{Record: *r, DistanceKm: d})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}
