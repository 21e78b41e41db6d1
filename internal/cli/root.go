package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) getStatus() string {
	parts := []string{}
	if a.currentUser != "" {
		parts = append(parts, a.currentUser[:8])
	}
	parts = append(parts, string(a.watcher.Mode()))
	return fmt.Sprintf("(%s)", strings.Join(parts, " "))
}

func (a *App) Root(ctx context.Context) {
	fmt.Println("Welcome to CropSync CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("csync %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			fmt.Println("Users:         adduser, users, use <id>")
			fmt.Println("Scans:         scan, list, show <id>, delete <id>, diagnose <scan-id>")
			fmt.Println("Notifications: notify, notifications, read <id>")
			fmt.Println("Tips:          tips")
			fmt.Println("Sync:          sync, status, retry <table> <id> <op>")
			fmt.Println("Other:         exit")

		case "adduser":
			a.addUser(ctx)
		case "users":
			a.listUsers(ctx)
		case "use":
			a.useUser(ctx, args)
		case "scan":
			a.addScan(ctx)
		case "list":
			a.listScans(ctx)
		case "show":
			a.showScan(ctx, args)
		case "delete":
			a.deleteScan(ctx, args)
		case "diagnose":
			a.diagnose(ctx, args)
		case "notify":
			a.addNotification(ctx)
		case "notifications":
			a.listNotifications(ctx)
		case "read":
			a.markRead(ctx, args)
		case "tips":
			a.listTips(ctx)
		case "sync":
			a.sync(ctx)
		case "status":
			a.status(ctx)
		case "retry":
			a.retry(ctx, args)
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}
