// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package madlib

// Every list holds exactly 1<<WordBits distinct entries.

var names = [...]string{
	"Alice", "Bruno", "Clara", "Dmitri", "Elena", "Farid", "Greta", "Hiro",
	"Ingrid", "Jonas", "Keiko", "Liam", "Mira", "Nadia", "Oscar", "Priya",
	"Quentin", "Rosa", "Stefan", "Tara", "Ugo", "Vera", "Wanda", "Xavier",
	"Yara", "Zeno", "Amos", "Bianca", "Cyrus", "Dora", "Emil", "Fiona",
	"Gus", "Hana", "Ivo", "Jade", "Kurt", "Lena", "Milo", "Nora",
	"Otto", "Pia", "Rafael", "Sofia", "Theo", "Uma", "Viktor", "Wren",
	"Yusuf", "Zara", "Anton", "Beatrix", "Caspar", "Delia", "Ezra", "Flora",
	"Gideon", "Helga", "Isak", "Juno", "Kasimir", "Lotte", "Magnus", "Nina",
}

var adjectives = [...]string{
	"angry", "brave", "clumsy", "dizzy", "eager", "fancy", "gentle", "happy",
	"icy", "jolly", "kind", "lazy", "merry", "nervous", "odd", "proud",
	"quiet", "rusty", "sleepy", "tiny", "ugly", "vivid", "wise", "young",
	"zany", "bold", "calm", "damp", "empty", "fuzzy", "giant", "hollow",
	"itchy", "jumpy", "lucky", "muddy", "noisy", "orange", "purple", "round",
	"shiny", "tall", "urban", "velvet", "wild", "yellow", "brisk", "crisp",
	"dusty", "fierce", "golden", "humble", "loyal", "mighty", "narrow", "polite",
	"rapid", "silent", "tidy", "vast", "witty", "cosmic", "frozen", "rustic",
}

var animals = [...]string{
	"aardvark", "badger", "camel", "dolphin", "eagle", "ferret", "gecko", "heron",
	"iguana", "jackal", "koala", "lemur", "moose", "newt", "otter", "panda",
	"quail", "rabbit", "salmon", "tiger", "urchin", "vulture", "walrus", "yak",
	"zebra", "beaver", "cobra", "donkey", "emu", "falcon", "goose", "hamster",
	"ibis", "jaguar", "kiwi", "llama", "mole", "narwhal", "ocelot", "pelican",
	"raven", "seal", "toad", "viper", "weasel", "bison", "crab", "dingo",
	"eel", "finch", "gorilla", "hyena", "impala", "lobster", "marmot", "octopus",
	"parrot", "reindeer", "squid", "tapir", "wombat", "cricket", "hornet", "mantis",
}

var verbs = [...]string{
	"admired", "baked", "chased", "danced with", "escaped", "fed", "greeted", "hugged",
	"ignored", "juggled", "kicked", "licked", "mocked", "nudged", "obeyed", "painted",
	"questioned", "rescued", "sang to", "tickled", "upset", "visited", "washed", "yelled at",
	"zapped", "bribed", "carried", "dressed", "envied", "fooled", "guarded", "hired",
	"invited", "joined", "kissed", "lifted", "married", "named", "outran", "pushed",
	"raced", "scolded", "taught", "unmasked", "voted for", "warned", "blessed", "copied",
	"drew", "emailed", "followed", "grabbed", "hunted", "interviewed", "judged", "loved",
	"measured", "noticed", "photographed", "rewarded", "surprised", "trusted", "welcomed", "wrapped",
}

var nouns = [...]string{
	"anchor", "banana", "candle", "drum", "engine", "feather", "guitar", "hammer",
	"igloo", "jacket", "kettle", "ladder", "mirror", "needle", "oven", "pillow",
	"quilt", "rocket", "saddle", "teapot", "umbrella", "violin", "wagon", "yacht",
	"zipper", "bucket", "cactus", "dagger", "easel", "fountain", "glove", "helmet",
	"island", "jar", "kite", "lantern", "magnet", "napkin", "orchard", "parcel",
	"radio", "scarf", "tractor", "unicycle", "vase", "whistle", "basket", "compass",
	"diamond", "envelope", "fork", "garden", "harbor", "iceberg", "jungle", "lemon",
	"mountain", "notebook", "pebble", "river", "sandwich", "tunnel", "valley", "window",
}

var adverbs = [...]string{
	"angrily", "boldly", "calmly", "daily", "eagerly", "fondly", "gladly", "happily",
	"idly", "jokingly", "kindly", "loudly", "madly", "nervously", "oddly", "proudly",
	"quickly", "rarely", "sadly", "tenderly", "urgently", "vainly", "warmly", "yearly",
	"zealously", "bravely", "cheerfully", "deftly", "easily", "fiercely", "gently", "honestly",
	"instantly", "jealously", "keenly", "lazily", "merrily", "neatly", "openly", "politely",
	"quietly", "rapidly", "softly", "tightly", "upward", "vividly", "wildly", "blindly",
	"clumsily", "deeply", "evenly", "freely", "gracefully", "hastily", "justly", "lightly",
	"mostly", "nobly", "partly", "roughly", "slowly", "truly", "wisely", "briskly",
}
