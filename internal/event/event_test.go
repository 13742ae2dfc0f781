package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Boot ")
	require.NoError(t, err)
	assert.Equal(t, KindBoot, k)

	_, err = ParseKind("reboot")
	assert.Error(t, err)
}

func TestParseKinds_EmptyMeansAll(t *testing.T) {
	kinds, err := ParseKinds(nil)
	require.NoError(t, err)
	assert.Nil(t, kinds)

	kinds, err = ParseKinds([]string{"logon", "logoff"})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindLogon, KindLogoff}, kinds)
}

func TestAllKinds_ReturnsCopy(t *testing.T) {
	kinds := AllKinds()
	kinds[0] = "mutated"
	assert.Equal(t, KindBoot, AllKinds()[0])
}

func TestKey_IncludesSource(t *testing.T) {
	a := Event{Time: 1000, Name: KindBoot, Source: "os"}
	b := Event{Time: 1000, Name: KindBoot, Source: "mac"}
	c := Event{Time: 1000, Name: KindBoot, Source: "os", Details: "different"}

	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), c.Key())
}

func TestKey_NoDelimiterCollisions(t *testing.T) {
	// A joined-string key would render both of these as "1_a_b".
	a := Key{Time: 1, Name: "a_b", Source: ""}
	b := Key{Time: 1, Name: "a", Source: "b"}
	assert.NotEqual(t, a, b)

	seen := map[Key]bool{a: true}
	assert.False(t, seen[b])
}

func TestNormalize(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed form.
	e := Event{Source: " OS ", Details: "  cafe\u0301  "}.Normalize()
	assert.Equal(t, "os", e.Source)
	assert.Equal(t, "caf\u00e9", e.Details)
}

func TestMinValidTime(t *testing.T) {
	assert.Equal(t, MinValidTime, FromTime(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestTimeRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	assert.True(t, ts.Equal(ToTime(FromTime(ts))))
}

func TestValidSourceName(t *testing.T) {
	assert.NoError(t, ValidSourceName("jira"))
	assert.NoError(t, ValidSourceName("mac-os"))
	assert.Error(t, ValidSourceName(""))
	assert.Error(t, ValidSourceName("Jira"))
	assert.Error(t, ValidSourceName("my source"))
}
