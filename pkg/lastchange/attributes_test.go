package lastchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributeSet(t *testing.T) {
	t.Run("zero_value", func(t *testing.T) {
		var s AttributeSet
		assert.Equal(t, 0, s.Len())
		assert.Empty(t, s.Names())
		assert.Equal(t, "{}", s.String())

		_, ok := s.Get("anything")
		assert.False(t, ok)
	})

	t.Run("ordered_and_deduplicated", func(t *testing.T) {
		s := NewAttributeSet(
			Attribute{Name: "TransportState", Value: "PLAYING"},
			Attribute{Name: "CurrentTrack", Value: "3"},
			Attribute{Name: "TransportState", Value: "STOPPED"},
		)

		assert.Equal(t, 2, s.Len())
		assert.Equal(t, []string{"TransportState", "CurrentTrack"}, s.Names())
		assert.Equal(t, "{TransportState: STOPPED, CurrentTrack: 3}", s.String())
	})

	t.Run("copies_do_not_leak", func(t *testing.T) {
		s := NewAttributeSet(Attribute{Name: "Volume", Value: "10"})

		m := s.Map()
		m["Volume"] = "99"
		attrs := s.Attributes()
		attrs[0].Value = "42"

		v, _ := s.Get("Volume")
		assert.Equal(t, "10", v)
	})

	t.Run("each_stops_early", func(t *testing.T) {
		s := NewAttributeSet(
			Attribute{Name: "A", Value: "1"},
			Attribute{Name: "B", Value: "2"},
			Attribute{Name: "C", Value: "3"},
		)

		var seen []string
		s.Each(func(name, value string) bool {
			seen = append(seen, name)
			return name != "B"
		})
		assert.Equal(t, []string{"A", "B"}, seen)
	})
}
