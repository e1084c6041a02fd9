package partcat

// Cursor walks the results of one batch request. The caller owns it; the
// connector keeps no iteration state. A cursor binds to the snapshot current
// at its first Next and fails with ErrStaleCursor once a later Refresh
// publishes another. A Cursor must not be shared between goroutines.
type Cursor struct {
	req       BatchRequest
	snapshot  string
	defs      []BatchDefinition
	pos       int
	exhausted bool
}

// NewCursor returns a cursor over the results of req.
func NewCursor(req BatchRequest) *Cursor {
	return &Cursor{req: req}
}

// AssetName returns the asset the request is scoped to, if any.
func (cur *Cursor) AssetName() string { return cur.req.AssetName }

// Request returns the request being iterated.
func (cur *Cursor) Request() BatchRequest { return cur.req }

// Exhausted reports whether Next has returned ErrExhausted.
func (cur *Cursor) Exhausted() bool { return cur.exhausted }

// Reset rewinds the cursor. The next call to Next rebinds it to the
// connector's current snapshot.
func (cur *Cursor) Reset() {
	cur.snapshot = ""
	cur.defs = nil
	cur.pos = 0
	cur.exhausted = false
}

// Next returns the batch spec of the next definition matching the cursor's
// request. It returns ErrExhausted after the last one.
func (c *Connector) Next(cur *Cursor) (BatchSpec, error) {
	snap, err := c.load()
	if err != nil {
		return BatchSpec{}, err
	}
	if cur.exhausted {
		return BatchSpec{}, ErrExhausted
	}

	switch cur.snapshot {
	case "":
		defs, err := c.match(snap, cur.req)
		if err != nil {
			return BatchSpec{}, err
		}
		cur.snapshot = snap.id
		cur.defs = defs
	case snap.id:
	default:
		return BatchSpec{}, ErrStaleCursor
	}

	if cur.pos >= len(cur.defs) {
		cur.exhausted = true
		return BatchSpec{}, ErrExhausted
	}
	spec, err := c.batchSpec(snap, cur.defs[cur.pos])
	if err != nil {
		return BatchSpec{}, err
	}
	cur.pos++
	return spec, nil
}
