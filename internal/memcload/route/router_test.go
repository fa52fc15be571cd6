package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/memcload/internal/common/loaderrors"
)

var shards = map[string]string{
	"idfa": "127.0.0.1:33013",
	"gaid": "127.0.0.1:33014",
	"adid": "127.0.0.1:33015",
	"dvid": "127.0.0.1:33016",
}

func TestRoute_Known(t *testing.T) {
	r := NewRouter(shards)
	for devType, expected := range shards {
		addr, err := r.Route(devType)
		require.NoError(t, err)
		assert.Equal(t, expected, addr)
		// Routing is pure
		again, err := r.Route(devType)
		require.NoError(t, err)
		assert.Equal(t, addr, again)
	}
}

func TestRoute_Unknown(t *testing.T) {
	r := NewRouter(shards)
	for _, devType := range []string{"unknown", "", "IDFA", "idfa "} {
		addr, err := r.Route(devType)
		assert.Empty(t, addr)
		var routingErr *loaderrors.ErrRouting
		require.ErrorAs(t, err, &routingErr)
		assert.Equal(t, devType, routingErr.Category)
	}
}

func TestRouter_IsolatedFromInput(t *testing.T) {
	input := map[string]string{"idfa": "a:1"}
	r := NewRouter(input)
	input["gaid"] = "b:1"
	_, err := r.Route("gaid")
	assert.Error(t, err)
}

func TestAddresses(t *testing.T) {
	r := NewRouter(map[string]string{"idfa": "b:1", "gaid": "a:1", "adid": "b:1"})
	assert.Equal(t, []string{"a:1", "b:1"}, r.Addresses())
}
