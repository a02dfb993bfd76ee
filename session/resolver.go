package session

import (
	"strings"

	"github.com/rs/zerolog"
	orderedmap "github.com/wk8/go-ordered-map"
	"go.flashlend.io/stxdapp"
	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/network"
)

// DefaultMaxDepth is the default bound of the heuristic scan.
const DefaultMaxDepth = 16

const (
	profileKey     = "profile"
	stxAddressKey  = "stxAddress"
	appsKey        = "apps"
	didKey         = "decentralizedID"
	didSeparator   = ":"
	didMinSegments = 4
	didMinLength   = 20
)

// Resolver extracts the account address out of a session. The locations are
// tried in a fixed order and the first match wins:
//
//  1. the network-keyed address of the profile,
//  2. the trailing segment of the decentralized identifier,
//  3. the per-origin application data, current origin first,
//  4. a heuristic scan of the whole session, bounded in depth.
type Resolver struct {
	preferred string
	origin    string
	maxDepth  int
	logger    zerolog.Logger
}

// ResolverOption is the type of options to create a resolver.
type ResolverOption func(*Resolver)

// WithPreferredNetwork sets the network key tried first when the address is
// keyed by network. The default is the testnet.
func WithPreferredNetwork(name string) ResolverOption {
	return func(r *Resolver) {
		r.preferred = name
	}
}

// WithOrigin sets the application origin looked up first in the per-origin
// application data.
func WithOrigin(origin string) ResolverOption {
	return func(r *Resolver) {
		r.origin = origin
	}
}

// WithMaxDepth bounds the depth of the heuristic scan.
func WithMaxDepth(depth int) ResolverOption {
	return func(r *Resolver) {
		r.maxDepth = depth
	}
}

// WithLogger sets the logger of the resolver.
func WithLogger(logger zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a new resolver.
func NewResolver(opts ...ResolverOption) Resolver {
	r := Resolver{
		preferred: network.TestnetName,
		maxDepth:  DefaultMaxDepth,
		logger:    stxdapp.Logger.With().Str("component", "session-resolver").Logger(),
	}

	for _, opt := range opts {
		opt(&r)
	}

	return r
}

// step is a candidate source of the address. It returns the address and the
// path where it has been found.
type step struct {
	name string
	find func(*orderedmap.OrderedMap) (string, string, bool)
}

// Resolve returns the address of the account, or false if none of the
// locations holds one. It never fails otherwise.
func (r Resolver) Resolve(s *Session) (address.Address, bool) {
	if s == nil || s.data == nil {
		return "", false
	}

	steps := []step{
		{name: "profile", find: r.fromProfile},
		{name: "decentralized-id", find: r.fromDID},
		{name: "apps", find: r.fromApps},
		{name: "heuristic-scan", find: r.scan},
	}

	for _, step := range steps {
		addr, path, found := step.find(s.data)
		if found {
			r.logger.Debug().
				Str("step", step.name).
				Str("path", path).
				Str("address", addr).
				Msg("address resolved")

			return address.Address(addr), true
		}

		r.logger.Trace().Str("step", step.name).Msg("no address")
	}

	r.logger.Warn().Msg("could not find an address in the session")

	return "", false
}

func (r Resolver) fromProfile(root *orderedmap.OrderedMap) (string, string, bool) {
	value, found := lookup(root, profileKey, stxAddressKey)
	if !found {
		return "", "", false
	}

	addr, key, ok := r.networkKeyed(value)
	if !ok {
		return "", "", false
	}

	return addr, join(profileKey, stxAddressKey, key), true
}

func (r Resolver) fromDID(root *orderedmap.OrderedMap) (string, string, bool) {
	value, found := root.Get(didKey)
	if !found {
		return "", "", false
	}

	did, ok := value.(string)
	if !ok {
		return "", "", false
	}

	parts := strings.Split(did, didSeparator)
	if len(parts) < didMinSegments {
		return "", "", false
	}

	last := parts[len(parts)-1]
	if !strings.HasPrefix(last, address.Prefix) || len(last) <= didMinLength {
		return "", "", false
	}

	return last, didKey, true
}

func (r Resolver) fromApps(root *orderedmap.OrderedMap) (string, string, bool) {
	value, found := lookup(root, profileKey, appsKey)
	if !found {
		return "", "", false
	}

	apps, ok := value.(*orderedmap.OrderedMap)
	if !ok {
		return "", "", false
	}

	if r.origin != "" {
		addr, path, found := r.fromApp(apps, r.origin)
		if found {
			return addr, path, true
		}
	}

	for pair := apps.Oldest(); pair != nil; pair = pair.Next() {
		key, ok := pair.Key.(string)
		if !ok {
			continue
		}

		addr, path, found := r.fromApp(apps, key)
		if found {
			return addr, path, true
		}
	}

	return "", "", false
}

func (r Resolver) fromApp(apps *orderedmap.OrderedMap, key string) (string, string, bool) {
	value, found := apps.Get(key)
	if !found {
		return "", "", false
	}

	app, ok := value.(*orderedmap.OrderedMap)
	if !ok {
		return "", "", false
	}

	direct, found := app.Get(stxAddressKey)
	if found {
		addr, sub, ok := r.networkKeyed(direct)
		if ok {
			return addr, join(profileKey, appsKey, key, stxAddressKey, sub), true
		}
	}

	nested, found := lookup(app, profileKey, stxAddressKey)
	if found {
		addr, sub, ok := r.networkKeyed(nested)
		if ok {
			return addr, join(profileKey, appsKey, key, profileKey, stxAddressKey, sub), true
		}
	}

	return "", "", false
}

// networkKeyed reads an address that is either a plain string or an object
// keyed by network name. The preferred network is tried first, then the other
// one.
func (r Resolver) networkKeyed(value interface{}) (string, string, bool) {
	switch v := value.(type) {
	case string:
		return v, "", v != ""
	case *orderedmap.OrderedMap:
		for _, key := range r.networkOrder() {
			raw, found := v.Get(key)
			if !found {
				continue
			}

			addr, ok := raw.(string)
			if ok && addr != "" {
				return addr, key, true
			}
		}
	}

	return "", "", false
}

func (r Resolver) networkOrder() []string {
	if r.preferred == network.MainnetName {
		return []string{network.MainnetName, network.TestnetName}
	}

	if r.preferred == "" || r.preferred == network.TestnetName {
		return []string{network.TestnetName, network.MainnetName}
	}

	return []string{r.preferred, network.TestnetName, network.MainnetName}
}

// scan walks the session depth-first in insertion order and returns the first
// string shaped like an address. Arrays are not visited.
func (r Resolver) scan(root *orderedmap.OrderedMap) (string, string, bool) {
	return r.scanObject(root, "", 0)
}

func (r Resolver) scanObject(obj *orderedmap.OrderedMap, prefix string, depth int) (string, string, bool) {
	if depth > r.maxDepth {
		r.logger.Debug().Str("path", prefix).Msg("scan depth exceeded")
		return "", "", false
	}

	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		key, ok := pair.Key.(string)
		if !ok {
			continue
		}

		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch value := pair.Value.(type) {
		case string:
			if address.LooksLike(value) {
				return value, path, true
			}
		case *orderedmap.OrderedMap:
			addr, p, found := r.scanObject(value, path, depth+1)
			if found {
				return addr, p, true
			}
		}
	}

	return "", "", false
}

func join(parts ...string) string {
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			res = append(res, p)
		}
	}

	return strings.Join(res, ".")
}
