package catalog

import "github.com/example/trip-booking/internal/models"

func km(v float64) *float64 { return &v }

// seed is the static trip catalog served by the storefront.
var seed = []models.Trip{
	{
		ID: 1, Title: "Bivouac au Djurdjura", Destination: "Tikjda, Bouira", Type: "Bivouac montagne",
		Category: models.CategoryBivouac, Difficulty: models.DifficultyMedium, Distance: km(14), Duration: "2 jours",
		Price: 6500, Includes: []string{"Transport", "Guide", "Dîner"}, Equipment: []string{"Tente", "Sac de couchage"},
		DepartureTime: "06:00", ReturnTime: "20:00", MeetingPoint: "Grand parking - Ruisseau",
		Rating: 4.8, ReviewCount: 126, ImageURLs: []string{"https://images.tahwisa213.dz/djurdjura-1.jpg", "https://images.tahwisa213.dz/djurdjura-2.jpg"},
		IsNextWeekend: true,
	},
	{
		ID: 2, Title: "Randonnée Chréa", Destination: "Chréa, Blida", Type: "Randonnée forêt",
		Category: models.CategoryHike, Difficulty: models.DifficultyEasy, Distance: km(9), Duration: "1 jour",
		Price: 2500, Includes: []string{"Transport", "Guide"}, Equipment: []string{"Chaussures de marche"},
		DepartureTime: "07:00", ReturnTime: "18:00", MeetingPoint: "Family shop - Blida",
		Rating: 4.5, ReviewCount: 210, ImageURLs: []string{"https://images.tahwisa213.dz/chrea-1.jpg"},
		IsNextWeekend: true,
	},
	{
		ID: 3, Title: "Gorges de Kherrata", Destination: "Kherrata, Béjaïa", Type: "Randonnée canyon",
		Category: models.CategoryHike, Difficulty: models.DifficultyDifficult, Distance: km(18), Duration: "1 jour",
		Price: 4000, Includes: []string{"Transport", "Guide", "Déjeuner"}, Equipment: []string{"Chaussures de marche", "Gourde"},
		DepartureTime: "05:30", ReturnTime: "21:00", MeetingPoint: "Le pont - Bab Ezzouar",
		Rating: 4.7, ReviewCount: 88, ImageURLs: []string{"https://images.tahwisa213.dz/kherrata-1.jpg"},
	},
	{
		ID: 4, Title: "Cap Carbon", Destination: "Béjaïa", Type: "Randonnée côtière",
		Category: models.CategoryHike, Difficulty: models.DifficultyMedium, Distance: km(12), Duration: "1 jour",
		Price: 3500, Includes: []string{"Transport", "Guide"}, Equipment: []string{"Chaussures de marche"},
		DepartureTime: "05:00", ReturnTime: "22:00", MeetingPoint: "Grand parking - Ruisseau",
		Rating: 4.9, ReviewCount: 154, ImageURLs: []string{"https://images.tahwisa213.dz/capcarbon-1.jpg"},
		IsNextWeekend: true,
	},
	{
		ID: 5, Title: "Lac de Tonga", Destination: "El Kala, El Tarf", Type: "Randonnée lac",
		Category: models.CategoryHike, Difficulty: models.DifficultyEasy, Distance: km(8), Duration: "2 jours",
		Price: 3000, Includes: []string{"Transport", "Guide", "Hébergement"}, Equipment: []string{"Jumelles"},
		DepartureTime: "04:30", ReturnTime: "23:00", MeetingPoint: "Le pont - Bab Ezzouar",
		Rating: 4.6, ReviewCount: 97, ImageURLs: []string{"https://images.tahwisa213.dz/tonga-1.jpg", "https://images.tahwisa213.dz/tonga-2.jpg"},
		IsNextWeekend: true,
	},
	{
		ID: 6, Title: "Nuit au Tassili", Destination: "Djanet, Illizi", Type: "Bivouac désert",
		Category: models.CategoryBivouac, Difficulty: models.DifficultyDifficult, Duration: "5 jours",
		Price: 45000, Includes: []string{"Vol", "Guide touareg", "Repas"}, Equipment: []string{"Sac de couchage", "Lampe frontale"},
		DepartureTime: "08:00", ReturnTime: "19:00", MeetingPoint: "Aéroport Houari Boumediene",
		Rating: 5, ReviewCount: 41, ImageURLs: []string{"https://images.tahwisa213.dz/tassili-1.jpg"},
	},
	{
		ID: 7, Title: "Forêt de Yakouren", Destination: "Yakouren, Tizi Ouzou", Type: "Randonnée forêt",
		Category: models.CategoryHike, Difficulty: models.DifficultyEasy, Distance: km(10), Duration: "1 jour",
		Price: 2800, Includes: []string{"Transport", "Guide"}, Equipment: []string{"Chaussures de marche"},
		DepartureTime: "06:30", ReturnTime: "19:30", MeetingPoint: "Grand parking - Ruisseau",
		Rating: 4.4, ReviewCount: 63, ImageURLs: []string{"https://images.tahwisa213.dz/yakouren-1.jpg"},
	},
	{
		ID: 8, Title: "Bivouac Lalla Khedidja", Destination: "Djurdjura, Tizi Ouzou", Type: "Bivouac montagne",
		Category: models.CategoryBivouac, Difficulty: models.DifficultyDifficult, Distance: km(22), Duration: "2 jours",
		Price: 7500, Includes: []string{"Transport", "Guide", "Dîner", "Petit-déjeuner"}, Equipment: []string{"Tente", "Crampons"},
		DepartureTime: "05:00", ReturnTime: "20:00", MeetingPoint: "Le pont - Bab Ezzouar",
		Rating: 4.9, ReviewCount: 72, ImageURLs: []string{"https://images.tahwisa213.dz/lallakhedidja-1.jpg"},
		IsNextWeekend: true,
	},
}
