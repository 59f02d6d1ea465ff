/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/dphs-ocr/apiserver/config"
	"github.com/dphs-ocr/apiserver/internal/db"
	"github.com/dphs-ocr/apiserver/internal/store"
	"github.com/dphs-ocr/apiserver/types"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// seedUsers are the well-known test accounts the mobile client ships with.
var seedUsers = []struct {
	user     types.User
	password string
}{
	{
		user: types.User{
			ID:           "user-001",
			Username:     "healthworker1",
			Name:         "Dr. Rajesh Kumar",
			Role:         "Health Worker",
			Email:        "rajesh.kumar@dpha.tn.gov.in",
			PhoneNumber:  "+91 9876543210",
			PHCName:      "Primary Health Center - Chennai North",
			HubName:      "Zone 3 Hub",
			BlockName:    "Teynampet Block",
			DistrictName: "Chennai",
			HealthCenter: "Primary Health Center - Chennai North",
			District:     "Chennai",
			State:        "Tamil Nadu",
		},
		password: "password123",
	},
	{
		user: types.User{
			ID:           "user-002",
			Username:     "labtech1",
			Name:         "Ms. Priya Sharma",
			Role:         "Lab Technician",
			Email:        "priya.sharma@dpha.tn.gov.in",
			PhoneNumber:  "+91 9876543211",
			PHCName:      "District Hospital - Coimbatore",
			HubName:      "Zone 2 Hub",
			BlockName:    "Coimbatore South Block",
			DistrictName: "Coimbatore",
			HealthCenter: "District Hospital - Coimbatore",
			District:     "Coimbatore",
			State:        "Tamil Nadu",
		},
		password: "labtech123",
	},
	{
		user: types.User{
			ID:           "user-003",
			Username:     "admin1",
			Name:         "Dr. Suresh Babu",
			Role:         "Administrator",
			Email:        "suresh.babu@dpha.tn.gov.in",
			PhoneNumber:  "+91 9876543212",
			PHCName:      "Directorate of Public Health",
			HubName:      "Central Hub",
			BlockName:    "Chennai Central",
			DistrictName: "Chennai",
			HealthCenter: "Directorate of Public Health",
			District:     "Chennai",
			State:        "Tamil Nadu",
		},
		password: "admin123",
	},
}

// seedCmd represents the seed command.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the well-known test user accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		userRepo := store.NewUserRepository(dbConn)
		for _, seed := range seedUsers {
			_, err := userRepo.GetByUsername(cmd.Context(), seed.user.Username)
			switch {
			case err == nil:
				fmt.Printf("user %q already exists\n", seed.user.Username)
				continue
			case !errors.Is(err, store.ErrNotFound):
				return fmt.Errorf("check user %q: %w", seed.user.Username, err)
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password for %q: %w", seed.user.Username, err)
			}
			user := seed.user
			user.PasswordHash = string(hash)

			if _, err := userRepo.Create(cmd.Context(), user); err != nil {
				return fmt.Errorf("create user %q: %w", seed.user.Username, err)
			}
			fmt.Printf("created user %q\n", seed.user.Username)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
