package feed

// Fallback seed content shown whenever the remote store is unavailable or
// empty. The additive merge in Load guarantees these are never fully hidden.

func fallbackStreamers() []Streamer {
	return []Streamer{
		{
			ID:           LocalID("s1"),
			Name:         "KaiCenat",
			Platform:     PlatformTwitch,
			Status:       StatusOnline,
			Location:     [2]float64{40.7128, -74.0060},
			LocationName: "New York City, USA",
			Category:     "Just Chatting",
			Votes:        1240,
			Avatar:       "https://picsum.photos/seed/kai/200/200",
			Bio:          "The biggest streamer in NYC right now.",
		},
		{
			ID:           LocalID("s2"),
			Name:         "IShowSpeed",
			Platform:     PlatformYouTube,
			Status:       StatusOnline,
			Location:     [2]float64{48.8566, 2.3522},
			LocationName: "Paris, France",
			Category:     "IRL",
			Votes:        3100,
			Avatar:       "https://picsum.photos/seed/speed/200/200",
			Bio:          "Traveling the world and barking at people.",
		},
		{
			ID:           LocalID("s3"),
			Name:         "XQC",
			Platform:     PlatformKick,
			Status:       StatusOffline,
			Location:     [2]float64{34.0522, -118.2437},
			LocationName: "Los Angeles, USA",
			Category:     "React",
			Votes:        2850,
			Avatar:       "https://picsum.photos/seed/xqc/200/200",
			Bio:          "The Juicer is currently offline.",
		},
		{
			ID:           LocalID("s4"),
			Name:         "Mizkif",
			Platform:     PlatformTwitch,
			Status:       StatusOnline,
			Location:     [2]float64{30.2672, -97.7431},
			LocationName: "Austin, Texas",
			Category:     "IRL Event",
			Votes:        950,
			Avatar:       "https://picsum.photos/seed/miz/200/200",
			Bio:          "Hosting another crazy gym stream.",
		},
	}
}

func fallbackClips() []Clip {
	return []Clip{
		{
			ID:           LocalID("c1"),
			StreamerName: "IShowSpeed",
			Title:        "SPEED JUMPS OVER CAR IN PARIS",
			Thumbnail:    "https://picsum.photos/seed/clip1/400/225",
			VideoURL:     "#",
			Votes:        450,
			Timestamp:    "2 hours ago",
			Tags:         []string{"CRAZY", "IRL", "PARIS"},
		},
		{
			ID:           LocalID("c2"),
			StreamerName: "KaiCenat",
			Title:        "The entire block came out for Kai",
			Thumbnail:    "https://picsum.photos/seed/clip2/400/225",
			VideoURL:     "#",
			Votes:        890,
			Timestamp:    "5 hours ago",
			Tags:         []string{"NYC", "AMP", "HYPE"},
		},
		{
			ID:           LocalID("c3"),
			StreamerName: "Mizkif",
			Title:        "Weightlifting competition goes wrong",
			Thumbnail:    "https://picsum.photos/seed/clip3/400/225",
			VideoURL:     "#",
			Votes:        210,
			Timestamp:    "1 day ago",
			Tags:         []string{"GYM", "FUNNY"},
		},
	}
}
