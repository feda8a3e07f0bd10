//go:build ignore

// ===========================================================================
// Development seed data: one workspace with an owner, an operator, a
// department, a default persona, an Evolution instance and a knowledge
// document.
// Run: go run scripts/seed/main.go
// ===========================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"whatsdesk/internal/config"
	"whatsdesk/internal/database"
	"whatsdesk/internal/dispatch"
	"whatsdesk/internal/models"
	"whatsdesk/internal/repositories"
	"whatsdesk/internal/services"
	"whatsdesk/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const seedPassword = "Password123!"

func main() {
	fmt.Println("Seeding development data...")

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zapLog, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format, "")
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database, zapLog)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()

	// =========================================================================
	// 1. Workspace
	// =========================================================================
	workspace := &models.Workspace{
		Name:     "Demo Clinic",
		Slug:     "demo-clinic",
		Settings: models.WorkspaceSettings{Timezone: "America/Sao_Paulo", Language: "pt-BR"},
		IsActive: true,
	}
	if found := firstOrCreate(db, workspace, "slug = ?", workspace.Slug); !found {
		fmt.Printf("Created workspace %s (%s)\n", workspace.Name, workspace.ID)
	}

	// =========================================================================
	// 2. Operators
	// =========================================================================
	users := []*models.User{
		{WorkspaceID: workspace.ID, Email: "owner@demo.com", Name: "Demo Owner", Role: models.RoleOwner, IsActive: true},
		{WorkspaceID: workspace.ID, Email: "operator@demo.com", Name: "Demo Operator", Role: models.RoleOperator, IsActive: true},
	}
	for _, user := range users {
		if err := user.SetPassword(seedPassword); err != nil {
			zapLog.Warn("failed to hash password", zap.String("email", user.Email), zap.Error(err))
			continue
		}
		if found := firstOrCreate(db, user, "email = ?", user.Email); !found {
			fmt.Printf("Created user %s (%s)\n", user.Email, user.Role)
		}
	}

	// =========================================================================
	// 3. Department and persona
	// =========================================================================
	dept := &models.Department{WorkspaceID: workspace.ID, Name: "Reception", Color: "#10b981"}
	firstOrCreate(db, dept, "workspace_id = ? AND name = ?", workspace.ID, dept.Name)

	persona := &models.Persona{
		WorkspaceID:  workspace.ID,
		Name:         "Receptionist",
		SystemPrompt: "You are the receptionist of a dental clinic. Answer briefly and offer to book an appointment.",
		Temperature:  0.7,
		MaxTokens:    1024,
		IsDefault:    true,
	}
	firstOrCreate(db, persona, "workspace_id = ? AND name = ?", workspace.ID, persona.Name)
	if err := repositories.NewPersonaRepository(db).SetDefault(ctx, workspace.ID, persona.ID); err != nil {
		zapLog.Warn("failed to mark default persona", zap.Error(err))
	}

	// =========================================================================
	// 4. WhatsApp instance
	// =========================================================================
	instance := &models.Instance{
		WorkspaceID:   workspace.ID,
		Name:          "Reception line",
		Provider:      models.ProviderEvolution,
		ExternalID:    "demo-clinic",
		WebhookSecret: "dev-secret",
		DepartmentID:  &dept.ID,
	}
	if found := firstOrCreate(db, instance, "provider = ? AND external_id = ?", instance.Provider, instance.ExternalID); !found {
		fmt.Printf("Created instance %s (%s)\n", instance.Name, instance.ID)
	}

	// =========================================================================
	// 5. Knowledge, chunked inline
	// =========================================================================
	knowledgeRepo := repositories.NewKnowledgeRepository(db)
	knowledge := services.NewKnowledgeService(
		knowledgeRepo,
		dispatch.Inline{Timeout: time.Minute, Logger: zapLog},
		cfg.Knowledge,
		zapLog,
	)
	var docCount int64
	db.Model(&models.KnowledgeDocument{}).Where("workspace_id = ?", workspace.ID).Count(&docCount)
	if docCount == 0 {
		doc, err := knowledge.Create(ctx, workspace.ID, services.CreateDocumentInput{
			Title:      "Opening hours and prices",
			SourceType: "text",
			Content: "The clinic opens Monday to Friday from 08:00 to 18:00 and Saturday from 08:00 to 12:00. " +
				"A cleaning costs R$ 150. A consultation costs R$ 200 and includes an X-ray. " +
				"Appointments can be rescheduled up to 24 hours in advance.",
		})
		if err != nil {
			zapLog.Warn("failed to create knowledge document", zap.Error(err))
		} else {
			fmt.Printf("Created knowledge document %s\n", doc.ID)
		}
	}

	// =========================================================================
	// Summary
	// =========================================================================
	fmt.Println("")
	fmt.Println("Seed completed")
	fmt.Printf("  Login:       owner@demo.com / %s\n", seedPassword)
	fmt.Printf("  Workspace:   %s\n", workspace.ID)
	fmt.Printf("  Instance:    %s\n", instance.ID)
	fmt.Println("")
	fmt.Println("Simulate an inbound message (needs a bearer token from /api/v1/auth/login):")
	fmt.Println(`  curl -X POST http://localhost:8080/api/v1/dev/simulate/inbound \`)
	fmt.Println(`    -H "Authorization: Bearer $TOKEN" -H "Content-Type: application/json" \`)
	fmt.Printf("    -d '{\"instance_id\":\"%s\",\"phone\":\"5511999990000\",\"message\":\"Oi, qual o horario?\"}'\n", instance.ID)

	os.Exit(0)
}

// firstOrCreate loads the row matching query into dst, or inserts dst.
// Reports whether the row already existed.
func firstOrCreate(db *gorm.DB, dst interface{}, query string, args ...interface{}) bool {
	err := db.Where(query, args...).First(dst).Error
	if err == nil {
		return true
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("lookup %T: %v", dst, err)
	}
	if err := db.Create(dst).Error; err != nil {
		log.Fatalf("create %T: %v", dst, err)
	}
	return false
}
