package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"intentforge/internal/engine"
	"intentforge/internal/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat [description]",
	Short: "Start an interactive refinement conversation",
	Long: `Opens a refinement session. Pass the opening description as arguments or
type it at the prompt.

In-chat commands:
  /state   show the current session snapshot
  /end     finalize the session and print the generation hand-off
  /quit    leave without finalizing`,
	RunE: runChat,
}

var (
	chatAssetType string
	chatMood      string
	chatGame      string
	chatBrand     string
)

func init() {
	chatCmd.Flags().StringVar(&chatAssetType, "asset", "twitch_emote", "asset type (twitch_emote, discord_emoji, youtube_thumbnail, stream_overlay, banner)")
	chatCmd.Flags().StringVar(&chatMood, "mood", "", "style mood, e.g. hype, cozy, serious")
	chatCmd.Flags().StringVar(&chatGame, "game", "", "game context for theming")
	chatCmd.Flags().StringVar(&chatBrand, "brand", "", "brand palette, comma-separated colors")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reader := bufio.NewReader(os.Stdin)

	opening := strings.TrimSpace(strings.Join(args, " "))
	if opening == "" {
		fmt.Print("Describe the image you have in mind: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		opening = strings.TrimSpace(line)
	}
	if opening == "" {
		return fmt.Errorf("nothing to refine")
	}

	sctx := types.SessionContext{
		AssetType:    chatAssetType,
		Mood:         chatMood,
		GameContext:  chatGame,
		BrandContext: chatBrand,
	}

	turnCtx, cancel := context.WithTimeout(ctx, timeout)
	sessionID, events, err := a.coach.Start(turnCtx, ownerID, sctx, opening)
	if err != nil {
		cancel()
		return err
	}
	renderTurn(events)
	cancel()

	for {
		fmt.Print("\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch input {
		case "/quit", "/exit":
			fmt.Println("Session left open:", sessionID)
			return nil

		case "/state":
			snap, err := a.coach.GetState(ctx, sessionID, ownerID)
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			printSnapshot(snap)
			continue

		case "/end":
			final, err := a.coach.End(ctx, sessionID, ownerID)
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			printFinal(final)
			return nil
		}

		turnCtx, cancel := context.WithTimeout(ctx, timeout)
		events, err := a.coach.Continue(turnCtx, sessionID, ownerID, input)
		if err != nil {
			cancel()
			fmt.Println("Error:", err)
			continue
		}
		renderTurn(events)
		cancel()

		if ctx.Err() != nil {
			return nil
		}
	}
}

// renderTurn prints the streamed turn: tokens as they arrive, then the
// readiness line from the terminal events.
func renderTurn(events <-chan engine.Event) {
	for ev := range events {
		switch ev.Type {
		case engine.EventToken:
			fmt.Print(ev.Token)

		case engine.EventGroundingStart:
			fmt.Printf("[looking up: %s]\n", ev.Query)

		case engine.EventGroundingComplete:
			if ev.UsedSearch {
				fmt.Println("[fresh context loaded]")
			}

		case engine.EventIntentStatus:
			fmt.Println()
			printStatus(ev.Intent)

		case engine.EventDone:
			if ev.Done.TurnsRemaining >= 0 {
				fmt.Printf("(turn %d, %d remaining)\n", ev.Done.TurnsUsed, ev.Done.TurnsRemaining)
			}

		case engine.EventError:
			fmt.Println("\nError:", ev.Message)
		}
	}
}

func printStatus(st *engine.IntentStatus) {
	if st == nil {
		return
	}
	if st.IsReady {
		fmt.Printf("-- ready to generate (confidence %.0f%%)\n", st.Confidence*100)
		fmt.Println("-- description:", st.RefinedDescription)
		fmt.Println("-- type /end to finalize")
		return
	}
	fmt.Printf("-- %s (confidence %.0f%%)\n", st.ReadinessState, st.Confidence*100)
	for _, q := range st.ClarificationQuestions {
		fmt.Println("-- open question:", q)
	}
	if len(st.MissingInfo) > 0 {
		fmt.Println("-- still missing:", strings.Join(st.MissingInfo, ", "))
	}
}

func printSnapshot(snap *engine.Snapshot) {
	fmt.Println("Session:     ", snap.SessionID)
	fmt.Println("Status:      ", snap.Status)
	fmt.Println("Asset type:  ", snap.AssetType)
	fmt.Println("Turns:       ", snap.TurnCount)
	fmt.Println("Readiness:   ", snap.ReadinessState)
	fmt.Printf("Confidence:   %.0f%%\n", snap.Confidence*100)
	if snap.Description != "" {
		fmt.Println("Description: ", snap.Description)
	}
	fmt.Printf("Tokens:       %d in / %d out, %d grounding calls\n",
		snap.TokensIn, snap.TokensOut, snap.GroundingCalls)
}

func printFinal(final *types.FinalIntent) {
	fmt.Println("\n=== Generation hand-off ===")
	fmt.Println("Description:", final.Description)
	fmt.Printf("Confidence:  %.0f%%\n", final.Confidence*100)
	if len(final.Keywords) > 0 {
		fmt.Println("Keywords:   ", strings.Join(final.Keywords, ", "))
	}
	for _, k := range []string{"quality_score", "generation_ready", "readiness", "turns_used"} {
		if v, ok := final.Metadata[k]; ok {
			fmt.Printf("%-12s %s\n", k+":", v)
		}
	}
}
