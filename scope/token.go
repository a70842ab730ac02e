package scope

import (
	"fmt"
	"sync/atomic"
)

var tokenSeq atomic.Uint64

// Token is an opaque identity minted once per cancellation event. Two
// tokens are equal (via ==) iff they originated from the same Cancel
// call; a token is never rebranded as it propagates to descendants.
type Token struct {
	id uint64
}

func newToken() Token {
	return Token{id: tokenSeq.Add(1)}
}

// String renders the token for diagnostics; it carries no meaning beyond
// the sequence number assigned at mint time.
func (t Token) String() string {
	return fmt.Sprintf("token#%d", t.id)
}
