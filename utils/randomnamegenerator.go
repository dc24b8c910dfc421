package utils

import (
	"math/rand"

	"github.com/Pallinder/go-randomdata"
)

// RandomNameGenerator hands out deterministic silly names for anonymous
// scene nodes. Zero value is ready to use.
type RandomNameGenerator map[string]struct{}

func (rng *RandomNameGenerator) init() {
	if *rng == nil {
		*rng = make(map[string]struct{})
		randomdata.CustomRand(rand.New(rand.NewSource(0)))
	}
}

// Reserve marks names already present in the scene so they are never
// generated.
func (rng *RandomNameGenerator) Reserve(names ...string) {
	rng.init()
	for _, name := range names {
		if name != "" {
			(*rng)[name] = struct{}{}
		}
	}
}

func (rng *RandomNameGenerator) RandomName() string {
	rng.init()
	for {
		name := randomdata.SillyName()
		if _, exists := (*rng)[name]; !exists {
			(*rng)[name] = struct{}{}
			return name
		}
	}
}
