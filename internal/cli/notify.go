package cli

import (
	"context"
	"fmt"
	"log"
	"os"
)

func (a *App) addNotification(ctx context.Context) {
	if !a.requireUser() {
		return
	}

	title, err := GetSimpleText(a.reader, "Enter title", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	body, err := GetSimpleText(a.reader, "Enter body", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	n, err := a.svc.Notifications.Add(ctx, a.currentUser, title, body, "manual")
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	fmt.Printf("Added notification %s\n", n.LocalID)
}

func (a *App) listNotifications(ctx context.Context) {
	if !a.requireUser() {
		return
	}

	ns, err := a.svc.Notifications.List(ctx, a.currentUser)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	for _, n := range ns {
		read := " "
		if n.Read {
			read = "r"
		}
		fmt.Printf("[%s] %s  %-30s %s (%s)\n", read, n.LocalID, n.Title,
			n.CreatedAt.Format("2006-01-02 15:04"), n.SyncStatus)
	}
}

func (a *App) markRead(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: read <notification-id>")
		return
	}

	if _, err := a.svc.Notifications.MarkRead(ctx, args[0]); err != nil {
		log.Printf("error: %v", err)
		return
	}
	fmt.Println("Marked read.")
}

func (a *App) listTips(ctx context.Context) {
	tips, err := a.svc.Tips.List(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	if len(tips) == 0 {
		fmt.Println("No tips cached yet; they arrive with the next sync.")
		return
	}
	for _, tip := range tips {
		fmt.Printf("%s  [%-10s] %s\n", tip.CreatedAt.Format("2006-01-02"), tip.Category, tip.Title)
		fmt.Printf("    %s\n", tip.Body)
	}
}
