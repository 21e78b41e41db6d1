package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mkravtsov/cropsync/internal/models"
)

func (a *App) addScan(ctx context.Context) {
	if !a.requireUser() {
		return
	}

	imagePath, err := GetSimpleText(a.reader, "Enter image path", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	crop, err := GetSimpleText(a.reader, "Enter crop (optional)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	lat, err := GetFloat(a.reader, "Enter latitude (optional)", 0, os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	lng, err := GetFloat(a.reader, "Enter longitude (optional)", 0, os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	sc, err := a.svc.Scans.Add(ctx, a.currentUser, imagePath, crop, lat, lng)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	fmt.Printf("Recorded scan %s\n", sc.LocalID)
}

func (a *App) listScans(ctx context.Context) {
	if !a.requireUser() {
		return
	}

	items, err := a.svc.Scans.List(ctx, a.currentUser)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	for _, item := range items {
		diag := "awaiting diagnosis"
		if item.Diagnosis != nil {
			diag = fmt.Sprintf("%s (%.0f%%, %s)", item.Diagnosis.Disease,
				item.Diagnosis.Confidence*100, item.Diagnosis.Severity)
		}
		fmt.Printf("%s  %-10s %-40s [%s]\n", item.Scan.LocalID, item.Scan.Crop, diag, item.Scan.SyncStatus)
	}
}

func (a *App) showScan(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: show <scan-id>")
		return
	}

	item, err := a.svc.Scans.Get(ctx, args[0])
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	s := item.Scan
	fmt.Printf("Scan %s\n", s.LocalID)
	fmt.Printf("  image:    %s\n", s.ImagePath)
	fmt.Printf("  crop:     %s\n", s.Crop)
	if s.Latitude != 0 || s.Longitude != 0 {
		fmt.Printf("  location: %.4f, %.4f\n", s.Latitude, s.Longitude)
	}
	fmt.Printf("  status:   %s (v%d)\n", s.SyncStatus, s.Version)
	if s.ServerID != "" {
		fmt.Printf("  server:   %s\n", s.ServerID)
	}

	if item.Diagnosis == nil {
		fmt.Println("  diagnosis: none yet")
		return
	}
	d := item.Diagnosis
	fmt.Printf("  diagnosis: %s, confidence %.2f, severity %s\n", d.Disease, d.Confidence, d.Severity)
	for _, r := range d.Recommendations {
		fmt.Printf("    - %s\n", r)
	}
}

func (a *App) deleteScan(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: delete <scan-id>")
		return
	}

	if err := a.svc.Scans.Delete(ctx, args[0]); err != nil {
		log.Printf("error: %v", err)
		return
	}
	fmt.Println("Deleted.")
}

func (a *App) diagnose(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: diagnose <scan-id>")
		return
	}

	disease, err := GetSimpleText(a.reader, "Enter disease", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	confidence, err := GetFloat(a.reader, "Enter confidence [0..1]", 0, os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	severity, err := GetSimpleText(a.reader, "Enter severity (low/moderate/high)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	recs, err := GetMultiline(a.reader, "Enter recommendations, one per line", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	d, err := a.svc.Diagnoses.Attach(ctx, args[0], disease,
		confidence, models.Severity(strings.ToLower(severity)), recs)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	fmt.Printf("Attached diagnosis %s\n", d.LocalID)
}
