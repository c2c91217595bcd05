package mockserver

import (
	"context"
	"fmt"
	"strings"
)

// Scene is one generated narrative segment.
type Scene struct {
	Narrative   string
	NextPrompts []string
}

// Narrator produces scenes. Implementations must be safe for concurrent use.
type Narrator interface {
	Setup(ctx context.Context, g GameInfo, framework, characterInfo string) (Scene, error)
	Act(ctx context.Context, g GameInfo, input string) (Scene, error)
}

// GameInfo describes the game a Narrator is asked to continue.
type GameInfo struct {
	ID       string
	Language string
	Turn     int
}

// ScriptedNarrator returns deterministic scenes built from the request, in
// Chinese for zh* languages and English otherwise.
type ScriptedNarrator struct{}

func (ScriptedNarrator) Setup(ctx context.Context, g GameInfo, framework, characterInfo string) (Scene, error) {
	name := characterName(characterInfo)
	if isChinese(g.Language) {
		return Scene{
			Narrative:   fmt.Sprintf("晨雾笼罩着古老的村庄。%s站在石桥上，远处传来钟声。%s", name, framework),
			NextPrompts: []string{"走向钟楼", "询问路过的商人", "查看随身的行囊"},
		}, nil
	}
	return Scene{
		Narrative:   fmt.Sprintf("Morning mist hangs over the old village. %s stands on the stone bridge as a distant bell tolls. %s", name, framework),
		NextPrompts: []string{"Walk to the bell tower", "Ask a passing merchant", "Check your pack"},
	}, nil
}

func (ScriptedNarrator) Act(ctx context.Context, g GameInfo, input string) (Scene, error) {
	if isChinese(g.Language) {
		return Scene{
			Narrative:   fmt.Sprintf("你决定%s。第%d回合，风向变了，新的道路在眼前展开。", input, g.Turn),
			NextPrompts: []string{"继续前进", "原地休息", "回头看看"},
		}, nil
	}
	return Scene{
		Narrative:   fmt.Sprintf("You %s. On turn %d the wind shifts and a new path opens ahead.", strings.TrimSuffix(input, "."), g.Turn),
		NextPrompts: []string{"Keep going", "Rest here", "Look back"},
	}, nil
}

func characterName(info string) string {
	for _, line := range strings.Split(info, "\n") {
		if name, ok := strings.CutPrefix(line, "Character name: "); ok && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
	}
	return "The traveler"
}

func isChinese(lang string) bool {
	return lang == "zh" || strings.HasPrefix(lang, "zh-")
}

// chunkRunes splits s into pieces of at most size runes.
func chunkRunes(s string, size int) []string {
	runes := []rune(s)
	if size <= 0 {
		size = len(runes)
	}
	chunks := make([]string, 0, len(runes)/max(size, 1)+1)
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
