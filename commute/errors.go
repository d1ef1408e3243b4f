package commute

import "errors"

var (
	ErrGeocoderRequired      = errors.New("geocoder required")
	ErrRouterRequired        = errors.New("router required")
	ErrArtifactStoreRequired = errors.New("artifact store required")
	ErrMissingColumns        = errors.New("table is missing required columns")
	ErrTargetUnresolvable    = errors.New("target address could not be geocoded")
)
