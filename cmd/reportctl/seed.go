package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/xelth-com/reg44go/internal/models"
	"github.com/xelth-com/reg44go/internal/report"
	"github.com/xelth-com/reg44go/internal/utils"
)

var seedFlags struct {
	org      string
	email    string
	password string
	demo     bool
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create an organization, an admin user and demo homes",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedFlags.org, "org", "Demo Care Group", "organization name")
	seedCmd.Flags().StringVar(&seedFlags.email, "email", "admin@example.com", "admin email")
	seedCmd.Flags().StringVar(&seedFlags.password, "password", "", "admin password (required)")
	seedCmd.Flags().BoolVar(&seedFlags.demo, "demo-homes", true, "create one home per setting type")
	_ = seedCmd.MarkFlagRequired("password")
}

func runSeed(cmd *cobra.Command, args []string) error {
	e, err := openEnv(false)
	if err != nil {
		return err
	}
	defer e.close()

	hash, err := utils.HashPassword(seedFlags.password)
	if err != nil {
		return err
	}

	org := models.Organization{Name: seedFlags.org}
	var homes []models.Home
	err = e.remote.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return fmt.Errorf("create organization: %w", err)
		}
		admin := models.UserAuth{
			OrganizationID: org.ID,
			Username:       seedFlags.email,
			Email:          seedFlags.email,
			Password:       hash,
			Name:           "Administrator",
			Role:           "admin",
			IsActive:       true,
		}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		if !seedFlags.demo {
			return nil
		}
		for i, st := range report.SettingTypes() {
			home := models.Home{
				OrganizationID:        org.ID,
				Name:                  fmt.Sprintf("%s %d", st.Label(), i+1),
				URN:                   fmt.Sprintf("SC%06d", 100000+i),
				Address:               fmt.Sprintf("%d High Street", i+1),
				SettingType:           string(st),
				RegisteredManager:     "Registered Manager",
				ResponsibleIndividual: "Responsible Individual",
			}
			if err := tx.Create(&home).Error; err != nil {
				return fmt.Errorf("create home: %w", err)
			}
			homes = append(homes, home)
		}
		return nil
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🌱 Organization %s (%s)\n", org.Name, org.ID)
	fmt.Fprintf(out, "👤 Admin %s\n", seedFlags.email)
	for _, h := range homes {
		fmt.Fprintf(out, "🏠 %s [%s] %s\n", h.Name, h.SettingType, h.ID)
	}
	return nil
}
