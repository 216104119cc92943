package atlas

// Backend turns atlas commands into GPU (or CPU) operations. The atlas
// borrows its backend: the backend must outlive the atlas, and all
// commands for one atlas are issued from the atlas owner's goroutine.
//
// Command ordering guarantees the atlas provides: one ConfigureAtlas
// per lifetime, followed by an interleaved stream of UploadTile and
// RenderTile in issue order; for any tile location, the upload strictly
// precedes the first render sampling it.
//
// Backends are expected to succeed; transient GPU failures are the
// backend's own concern to queue and absorb.
type Backend interface {
	// AtlasSize returns the size of the configured atlas texture, or
	// the zero Size before ConfigureAtlas.
	AtlasSize() Size

	// ConfigureAtlas creates the atlas texture, destroying any prior
	// one owned by this backend.
	ConfigureAtlas(ConfigureAtlas)

	// UploadTile copies a bitmap into the atlas texture. The bitmap
	// buffer is owned by the command and must not be retained by the
	// caller afterwards.
	UploadTile(UploadTile)

	// RenderTile draws a tile at a target position.
	RenderTile(RenderTile)
}
