package buffer

// Allocate creates a fresh Region sized to hold schema and constructs a
// BufferStruct over it, minting uniqueID as its owning id.
func Allocate(schema *Schema, uniqueID float64, opts ...Option) (*BufferStruct, error) {
	region, err := NewMmapRegion(schema.TotalSize)
	if err != nil {
		return nil, err
	}
	return New(schema, region, uniqueID, opts...), nil
}
