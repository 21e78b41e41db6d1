package cli

import (
	"context"
	"fmt"
	"log"
	"os"
)

func (a *App) addUser(ctx context.Context) {
	name, err := GetSimpleText(a.reader, "Enter name", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	phone, err := GetSimpleText(a.reader, "Enter phone (optional)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	region, err := GetSimpleText(a.reader, "Enter region (optional)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	u, err := a.svc.Users.Add(ctx, name, phone, region)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	a.currentUser = u.LocalID
	fmt.Printf("Added user %s (%s)\n", u.Name, u.LocalID)
}

func (a *App) listUsers(ctx context.Context) {
	users, err := a.svc.Users.List(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	for _, u := range users {
		marker := " "
		if u.LocalID == a.currentUser {
			marker = "*"
		}
		fmt.Printf("%s %s  %-20s %-15s %s [%s]\n", marker, u.LocalID, u.Name, u.Phone, u.Region, u.SyncStatus)
	}
}

func (a *App) useUser(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: use <user-id>")
		return
	}

	u, err := a.svc.Users.Get(ctx, args[0])
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	a.currentUser = u.LocalID
	fmt.Printf("Now acting as %s\n", u.Name)
}

// requireUser guards commands that need a selected profile.
func (a *App) requireUser() bool {
	if a.currentUser == "" {
		fmt.Println("Select a user first: adduser or use <id>")
		return false
	}
	return true
}
