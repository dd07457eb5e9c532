package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"course-payment-portal/internal/config"
	"course-payment-portal/internal/domain"
	"course-payment-portal/internal/domain/model"
	pg "course-payment-portal/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	regRepo := pg.NewRegistrationRepo(pool)
	enrollRepo := pg.NewEnrollmentRepo(pool)
	priceRepo := pg.NewCoursePriceRepo(pool)

	// If the demo registration already exists, do nothing.
	if _, err := regRepo.FindByRegistrationNumber(ctx, nil, "REG-2026-0001"); err == nil {
		fmt.Println("demo data already present. No changes.")
		return
	} else if err != domain.ErrNotFound {
		log.Fatalf("check existing data: %v", err)
	}

	prices := []struct {
		Course string
		Price  string
	}{
		{"Full-Stack Web Development", "2000.00"},
		{"Intro to Data Analysis", "300.00"},
	}
	for _, p := range prices {
		amount, _ := decimal.NewFromString(p.Price)
		if err := priceRepo.Save(ctx, nil, &model.CoursePrice{
			CourseName: p.Course,
			Price:      amount,
			Currency:   cfg.Payment.Currency,
		}); err != nil {
			log.Fatalf("seed price %q: %v", p.Course, err)
		}
		fmt.Printf("seeded price: %s = %s %s\n", p.Course, p.Price, cfg.Payment.Currency)
	}

	now := time.Now()
	reg := &model.Registration{
		ID:                 uuid.NewString(),
		RegistrationNumber: "REG-2026-0001",
		Name:               "Jordan Tremblay",
		Email:              "jordan.tremblay@example.ca",
		Phone:              "+1-416-555-0142",
		CreatedAt:          now,
	}
	if err := regRepo.Save(ctx, nil, reg); err != nil {
		log.Fatalf("seed registration: %v", err)
	}
	fmt.Printf("seeded registration: %s (%s)\n", reg.RegistrationNumber, reg.ID)

	for _, p := range prices {
		e := &model.CourseEnrollment{
			ID:             uuid.NewString(),
			RegistrationID: reg.ID,
			CourseName:     p.Course,
			EnrolledAt:     now,
		}
		if err := enrollRepo.Save(ctx, nil, e); err != nil {
			log.Fatalf("seed enrollment %q: %v", p.Course, err)
		}
		fmt.Printf("seeded enrollment: %s (%s)\n", p.Course, e.ID)
	}

	fmt.Println("Seeding complete.")
}
