package link

import (
	"testing"

	"github.com/teranos/omekalink/internal/omekatest"
	"github.com/teranos/omekalink/omeka"
)

func newFakeOmeka(t *testing.T) *omekatest.Server {
	t.Helper()
	return omekatest.New(t)
}

func newClient(srv *omekatest.Server) *omeka.Client {
	return omeka.NewClient(omeka.Config{
		APIURL:        srv.APIURL(),
		KeyIdentity:   omekatest.KeyIdentity,
		KeyCredential: omekatest.KeyCredential,
	})
}
