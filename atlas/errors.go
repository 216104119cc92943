package atlas

import "errors"

// Atlas errors.
var (
	// ErrInvalidProperties is returned when atlas properties fail
	// validation at construction.
	ErrInvalidProperties = errors.New("atlas: invalid properties")

	// ErrInvalidGeometry is returned when the derived grid cannot fit
	// the requested direct-mapped and cached tile counts.
	ErrInvalidGeometry = errors.New("atlas: derived geometry cannot fit requested tile count")

	// ErrGeometryChangeUnsupported is returned by Reset when the new
	// properties differ from those the atlas was created with. Geometry
	// is frozen at construction; create a new atlas instead.
	ErrGeometryChangeUnsupported = errors.New("atlas: geometry change is unsupported")
)
