// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:generate go run ../cmd/musgen

// Package geo defines geocoding and routing capabilities and the distance
// policy used to pick a travel mode.
package geo

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoResult is returned when an address cannot be resolved.
	ErrNoResult = errors.New("no geocoding result")

	// ErrNoRoute is returned when no route exists between two points.
	ErrNoRoute = errors.New("no route")
)

// Coordinates is a WGS-84 position in decimal degrees.
type Coordinates struct {
	Lat float64
	Lng float64
}

// String renders "lat,lng", the form routing services accept.
func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Mode is a travel mode understood by the routing service.
type Mode string

const (
	ModeBicycling Mode = "bicycling"
	ModeTransit   Mode = "transit"
)

// BicyclingThresholdKm is the distance from which transit is used instead
// of bicycling.
const BicyclingThresholdKm = 5.0

// SelectMode picks bicycling below BicyclingThresholdKm, transit otherwise.
func SelectMode(distanceKm float64) Mode {
	if distanceKm < BicyclingThresholdKm {
		return ModeBicycling
	}
	return ModeTransit
}

// Geocoder resolves addresses to coordinates.
type Geocoder interface {
	// Geocode returns ErrNoResult when the address is unresolvable.
	Geocode(ctx context.Context, address string) (Coordinates, error)
}

// Router estimates travel time between two points.
type Router interface {
	Duration(ctx context.Context, origin, destination Coordinates, mode Mode) (time.Duration, error)
}

// GeocoderFunc adapts a function to a Geocoder.
type GeocoderFunc func(ctx context.Context, address string) (Coordinates, error)

func (f GeocoderFunc) Geocode(ctx context.Context, address string) (Coordinates, error) {
	return f(ctx, address)
}

// RouterFunc adapts a function to a Router.
type RouterFunc func(ctx context.Context, origin, destination Coordinates, mode Mode) (time.Duration, error)

func (f RouterFunc) Duration(ctx context.Context, origin, destination Coordinates, mode Mode) (time.Duration, error) {
	return f(ctx, origin, destination, mode)
}
