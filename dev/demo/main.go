// Demo terminal client. Run the dev backend first, then:
//
//	go run ./dev/demo -email you@example.com -name You
//
// Lines are sent as messages; end a line with `\` to continue the draft
// on the next line (the terminal stand-in for Shift+Enter). Commands:
//
//	/channels            list channels
//	/join <name>         switch channel
//	/create <name>       create channel
//	/pin <n>             toggle pin on the n-th visible message
//	/react <n> <emoji>   toggle a reaction on the n-th visible message
//	/quit
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/Mikemike8/teamchat/auth"
	"github.com/Mikemike8/teamchat/client"
)

var (
	flagServer = flag.String("server", "http://127.0.0.1:8000", "backend base URL")
	flagEmail  = flag.String("email", "", "identity email; TEAMCHAT_EMAIL when empty")
	flagName   = flag.String("name", "", "display name")
	flagAvatar = flag.String("avatar", "", "avatar URL")
	flagEnv    = flag.String("env-file", ".env", "dotenv file for the identity")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	var provider auth.Provider
	if *flagEmail != "" {
		provider = &auth.StaticProvider{ID: auth.Identity{
			Email:  *flagEmail,
			Name:   *flagName,
			Avatar: *flagAvatar,
		}}
	} else {
		provider = &auth.EnvProvider{DotenvFile: *flagEnv}
	}

	id, err := provider.Identity()
	if err != nil {
		glog.Errorf("demo: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := client.Dial(client.Config{BaseURL: *flagServer})
	if err := sess.Start(ctx, id); err != nil {
		glog.Errorf("demo: start session: %v", err)
		os.Exit(1)
	}
	defer sess.Close()

	current, _ := sess.Current()
	fmt.Printf("signed in as %s, channel #%s\n", sess.User().Name, current.Name)

	go printLoop(ctx, sess)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "/") {
			if !command(sess, line) {
				return
			}
			continue
		}

		composer := sess.Composer()
		if strings.HasSuffix(line, `\`) {
			composer.Insert(strings.TrimSuffix(line, `\`))
			composer.Press(client.KeyEnter, 0, true)
			continue
		}
		composer.Insert(line)
		if _, ok := sess.Submit(); !ok {
			fmt.Println("(nothing sent)")
		}
	}
}

// printLoop renders feed entries as they appear.
func printLoop(ctx context.Context, sess *client.Session) {
	seen := make(map[string]bool)
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for i, m := range sess.Messages() {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			pin := ""
			if m.IsPinned {
				pin = " 📌"
			}
			fmt.Printf("[%d] %s %s: %s%s\n", i, m.Timestamp.Format("15:04"), m.User.Name, m.Content, pin)
		}
	}
}

func command(sess *client.Session, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return false
	case "/channels":
		current, _ := sess.Current()
		for _, ch := range sess.Channels() {
			marker := " "
			if ch.ID == current.ID {
				marker = "*"
			}
			fmt.Printf("%s #%s  %s\n", marker, ch.Name, ch.Description)
		}
	case "/join":
		if len(fields) < 2 {
			fmt.Println("usage: /join <name>")
			break
		}
		for _, ch := range sess.Channels() {
			if ch.Name == fields[1] {
				sess.SwitchChannel(ch.ID)
				fmt.Printf("joined #%s\n", ch.Name)
				return true
			}
		}
		fmt.Println("no such channel")
	case "/create":
		if len(fields) < 2 {
			fmt.Println("usage: /create <name>")
			break
		}
		ch, err := sess.CreateChannel(context.Background(), fields[1], "", false)
		if err != nil {
			fmt.Printf("create failed: %v\n", err)
			break
		}
		fmt.Printf("created #%s\n", ch.Name)
	case "/pin":
		if i, ok := nth(sess, fields); ok {
			sess.TogglePin(sess.Messages()[i].ID)
		}
	case "/react":
		if len(fields) < 3 {
			fmt.Println("usage: /react <n> <emoji>")
			break
		}
		if i, ok := nth(sess, fields); ok {
			sess.ToggleReaction(sess.Messages()[i].ID, fields[2])
		}
	default:
		fmt.Println("unknown command")
	}
	return true
}

func nth(sess *client.Session, fields []string) (int, bool) {
	if len(fields) < 2 {
		fmt.Println("usage: " + fields[0] + " <n>")
		return 0, false
	}
	i, err := strconv.Atoi(fields[1])
	if err != nil || i < 0 || i >= len(sess.Messages()) {
		fmt.Println("no such message")
		return 0, false
	}
	return i, true
}
