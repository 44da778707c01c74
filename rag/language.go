// Copyright 2026 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rag

import (
	"strings"
	"unicode"
)

// DefaultLanguage is reported when no heuristic matches.
const DefaultLanguage = "english"

// LanguageDetector tags a text with a best-effort language name.
// Implementations must be safe for concurrent use.
type LanguageDetector interface {
	Detect(text string) string
}

// LanguageDetectorFunc adapts a function to LanguageDetector.
type LanguageDetectorFunc func(text string) string

// Detect calls f(text).
func (f LanguageDetectorFunc) Detect(text string) string {
	return f(text)
}

// HeuristicDetector identifies languages by Unicode script and, for Latin
// text, by distinctive stop words and diacritics.
type HeuristicDetector struct{}

var _ LanguageDetector = HeuristicDetector{}

// keyword tables for Latin-script languages, in tie-break order.
var latinLanguages = []struct {
	name      string
	words     map[string]struct{}
	diacritic string
}{
	{"english", wordSet("the and is are you to of what how with this that for please thanks your"), ""},
	{"spanish", wordSet("el la los las que y en es por para con una del está cómo qué pero muy hola gracias usted"), "ñ¿¡"},
	{"portuguese", wordSet("o os as não que em um uma para com é do da você obrigado muito olá"), "ãõç"},
	{"french", wordSet("le les des est et une pour dans avec pas vous je bonjour merci ce qui"), "œêèà"},
	{"italian", wordSet("il gli della che è per una con non sono ciao grazie questo anche"), "ì"},
	{"german", wordSet("der die das und ist nicht ich sie mit ein eine zu auf danke bitte"), "ßäöü"},
	{"dutch", wordSet("het een en van niet ik je met voor dank zijn wij"), "ĳ"},
	{"polish", wordSet("nie jest się że na dziękuję jak czy proszę"), "łąęśźż"},
	{"czech", wordSet("je se že není děkuji jak prosím také"), "řěů"},
}

func wordSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

// Detect returns the most likely language of text.
func (HeuristicDetector) Detect(text string) string {
	var latin, han, kana, hangul, arabic, greek, cyrillic int
	ukrainian := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Greek, r):
			greek++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
			if strings.ContainsRune("іїєґІЇЄҐ", r) {
				ukrainian = true
			}
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}

	letters := latin + han + kana + hangul + arabic + greek + cyrillic
	if letters == 0 {
		return DefaultLanguage
	}
	// A script wins when it covers at least a third of the letters.
	dominant := func(n int) bool { return n*3 >= letters }
	switch {
	case kana > 0 && dominant(kana+han):
		return "japanese"
	case dominant(hangul):
		return "korean"
	case dominant(han):
		return "chinese"
	case dominant(arabic):
		return "arabic"
	case dominant(greek):
		return "greek"
	case dominant(cyrillic):
		if ukrainian {
			return "ukrainian"
		}
		return "russian"
	}
	return detectLatin(text)
}

func detectLatin(text string) string {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	best, bestScore := DefaultLanguage, 0
	for _, lang := range latinLanguages {
		score := 0
		for _, w := range words {
			if _, ok := lang.words[w]; ok {
				score++
			}
		}
		for _, r := range lang.diacritic {
			if strings.ContainsRune(lower, r) {
				score += 2
			}
		}
		if score > bestScore {
			best, bestScore = lang.name, score
		}
	}
	return best
}
