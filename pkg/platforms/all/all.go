// Package all assembles the adapter registry for every supported platform.
package all

import (
	"github.com/sw33tLie/statscope/pkg/platforms"
	"github.com/sw33tLie/statscope/pkg/platforms/atcoder"
	"github.com/sw33tLie/statscope/pkg/platforms/codeforces"
	"github.com/sw33tLie/statscope/pkg/platforms/github"
	"github.com/sw33tLie/statscope/pkg/platforms/hackerrank"
	"github.com/sw33tLie/statscope/pkg/platforms/leetcode"
)

func Registry(deps platforms.Deps) platforms.Registry {
	adapters := []platforms.Adapter{
		leetcode.New(deps),
		codeforces.New(deps),
		atcoder.New(deps),
		github.New(deps),
		hackerrank.New(deps),
	}
	r := make(platforms.Registry, len(adapters))
	for _, a := range adapters {
		r[a.Platform()] = a
	}
	return r
}
