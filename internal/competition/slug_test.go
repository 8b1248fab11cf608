package competition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Coupe Régionale", "coupe-regionale"},
		{"Coupe Régionale – Été 2024", "coupe-regionale-ete-2024"},
		{"  Championnat   de France  ", "championnat-de-france"},
		{"Gym & Fun", "gym-and-fun"},
		{"Œuvre Straße", "oeuvre-strasse"},
		{"Tournoi N°3 (poussines)", "tournoi-n-3-poussines"},
		{"already-a-slug", "already-a-slug"},
		{"!!!", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Slugify(tc.in), tc.in)
	}
}

func TestSlugifyIsDeterministic(t *testing.T) {
	assert.Equal(t, Slugify("Coupe d'Automne"), Slugify("Coupe d'Automne"))
	assert.Equal(t, "coupe-d-automne", Slugify("Coupe d'Automne"))
}
