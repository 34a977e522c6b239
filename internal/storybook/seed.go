package storybook

// Seed data present in every new studio.
var (
	seedCharacters = []Character{
		{
			Name:        "Leo the lion cub",
			Description: "A small, friendly lion cub with a fluffy light-brown mane, curious blue eyes, and a little red scarf.",
		},
		{
			Name:        "Willow the wise owl",
			Description: "An elegant barn owl with silvery-white feathers, large intelligent amber eyes, and small round glasses.",
		},
	}

	seedPageText = "Once upon a time, in a sun-drenched meadow, Leo the lion cub was practicing his roar. " +
		"But his 'ROAR' sounded more like a 'meow'."
)
