package session

import (
	"sync"

	"go.flashlend.io/stxdapp/address"
	"golang.org/x/xerrors"
)

// ErrAddressNotFound is returned when a session is signed in but none of the
// known locations holds an address. The user must authenticate again.
var ErrAddressNotFound = xerrors.New("wallet address not found in user data, please reconnect")

// ErrSignedOut is returned when a session is required but none is loaded.
var ErrSignedOut = xerrors.New("no session is signed in")

// Holder keeps the current session and its resolved address. The address is
// resolved once when the session is signed in and stays the same until the
// session is replaced or signed out.
type Holder struct {
	sync.RWMutex

	resolver Resolver
	sess     *Session
	addr     address.Address
}

// NewHolder creates an empty holder.
func NewHolder(r Resolver) *Holder {
	return &Holder{resolver: r}
}

// SignIn resolves the address of the session and makes it the current one. A
// session without an address is rejected and the holder is signed out.
func (h *Holder) SignIn(s *Session) (address.Address, error) {
	h.Lock()
	defer h.Unlock()

	if !s.SignedIn() {
		h.sess, h.addr = nil, ""
		return "", ErrSignedOut
	}

	addr, found := h.resolver.Resolve(s)
	if !found {
		h.sess, h.addr = nil, ""
		return "", ErrAddressNotFound
	}

	h.sess = s
	h.addr = addr

	return addr, nil
}

// SignOut forgets the current session.
func (h *Holder) SignOut() {
	h.Lock()
	h.sess, h.addr = nil, ""
	h.Unlock()
}

// Current returns the current session and its address. The session is nil
// when signed out.
func (h *Holder) Current() (*Session, address.Address) {
	h.RLock()
	defer h.RUnlock()

	return h.sess, h.addr
}
