package geo

// MarshalCoordinates serializes c to bytes.
func MarshalCoordinates(c Coordinates) []byte {
	buf := make([]byte, CoordinatesMUS.Size(c))
	CoordinatesMUS.Marshal(c, buf)
	return buf
}

// UnmarshalCoordinates deserializes coordinates from bytes.
func UnmarshalCoordinates(data []byte) (Coordinates, error) {
	c, _, err := CoordinatesMUS.Unmarshal(data)
	return c, err
}
