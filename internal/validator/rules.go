package validator

// Rule tables: required semantic slots per asset type, opposite-style pairs,
// small-format compatibility, and the color lexicon for brand alignment.

// slot is one required semantic element, matched via indicator words.
type slot struct {
	Name       string
	Indicators []string
	Suggestion string
}

// requiredSlots maps asset type -> semantic slots a usable description needs.
var requiredSlots = map[string][]slot{
	"twitch_emote": {
		{
			Name: "subject",
			Indicators: []string{
				"character", "face", "mascot", "person", "animal", "figure",
				"creature", "avatar", "head", "hand", "pose",
			},
			Suggestion: "describe who or what the emote shows",
		},
		{
			Name: "emotion",
			Indicators: []string{
				"happy", "hype", "excited", "angry", "sad", "crying", "laughing",
				"celebrating", "victory", "rage", "love", "shocked", "smug",
				"surprised", "cheering", "pog",
			},
			Suggestion: "name the emotion the emote should convey",
		},
	},
	"discord_emoji": {
		{
			Name: "subject",
			Indicators: []string{
				"character", "face", "mascot", "person", "animal", "figure",
				"creature", "avatar", "head", "hand", "symbol", "object",
			},
			Suggestion: "describe the emoji's subject",
		},
	},
	"youtube_thumbnail": {
		{
			Name: "subject",
			Indicators: []string{
				"character", "person", "player", "scene", "screenshot", "face",
				"figure", "logo",
			},
			Suggestion: "describe the focal subject of the thumbnail",
		},
		{
			Name: "composition",
			Indicators: []string{
				"background", "foreground", "left", "right", "center", "top",
				"bottom", "behind", "layout", "split",
			},
			Suggestion: "say how the thumbnail should be composed",
		},
	},
	"stream_overlay": {
		{
			Name: "layout",
			Indicators: []string{
				"frame", "border", "panel", "corner", "webcam", "chat", "alert",
				"banner", "layout", "edge",
			},
			Suggestion: "describe which overlay regions the design covers",
		},
	},
	"banner": {
		{
			Name: "subject",
			Indicators: []string{
				"character", "logo", "scene", "landscape", "person", "mascot",
				"text", "title",
			},
			Suggestion: "describe the banner's focal content",
		},
	},
}

// conflictPairs are opposite style terms that cannot both apply.
var conflictPairs = [][2]string{
	{"minimalist", "detailed"},
	{"minimalist", "intricate"},
	{"realistic", "cartoon"},
	{"realistic", "anime"},
	{"dark", "bright"},
	{"vintage", "modern"},
	{"vintage", "futuristic"},
	{"simple", "complex"},
	{"flat", "3d"},
	{"muted", "vibrant"},
}

// smallFormats are asset types rendered at emoji scale, where backgrounds
// and body text stop reading.
var smallFormats = map[string]bool{
	"twitch_emote":  true,
	"discord_emoji": true,
	"sub_badge":     true,
}

var backgroundIndicators = []string{"background", "backdrop", "scenery", "landscape"}
var textIndicators = []string{"text", "caption", "words", "lettering", "slogan"}

// colorLexicon names the colors the brand-alignment check can recognize in a
// description.
var colorLexicon = []string{
	"red", "orange", "yellow", "green", "teal", "cyan", "blue", "navy",
	"purple", "violet", "magenta", "pink", "brown", "black", "white", "gray",
	"grey", "gold", "silver",
}
