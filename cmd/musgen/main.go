package main

import (
	"os"
	"reflect"
	"strings"

	musgen "github.com/mus-format/musgen-go/mus"
	genops "github.com/mus-format/musgen-go/options/generate"
	structops "github.com/mus-format/musgen-go/options/struct"
	"github.com/poiesic/tutorder/geo"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	// go:generate runs from the geo package directory
	if strings.HasSuffix(cwd, "geo") {
		if err := os.Chdir(".."); err != nil {
			panic(err)
		}
	}
	g, err := musgen.NewCodeGenerator(
		genops.WithPkgPath("github.com/poiesic/tutorder/geo"),
	)
	if err != nil {
		panic(err)
	}

	// Lat, Lng
	err = g.AddStruct(reflect.TypeFor[geo.Coordinates](),
		structops.WithField(),
		structops.WithField())
	if err != nil {
		panic(err)
	}

	bs, err := g.Generate()
	if err != nil {
		panic(err)
	}

	err = os.WriteFile("./geo/coordinates_mus.gen.go", bs, 0644)
	if err != nil {
		panic(err)
	}
}
