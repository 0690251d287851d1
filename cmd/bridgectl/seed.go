package main

import (
	"context"
	"fmt"

	"bridgeus/internal/app"
	"bridgeus/internal/models"
	"bridgeus/internal/services"
	"bridgeus/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedPassword string
	seedTasks    int
)

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "bridgeus-demo", "Password of the demo accounts")
	seedCmd.Flags().IntVar(&seedTasks, "tasks", 5, "Number of demo tasks to publish")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a demo company, a demo student and published tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			summary, err := seed(ctx, a.Services, a.Logger)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), summary, func() string {
				return fmt.Sprintf("company %s\nstudent %s\ntasks   %d\n",
					summary.CompanyEmail, summary.StudentEmail, len(summary.TaskIDs))
			})
		})
	},
}

// seedSummary reports what seed created
type seedSummary struct {
	CompanyID    string   `json:"companyId" yaml:"companyId"`
	CompanyEmail string   `json:"companyEmail" yaml:"companyEmail"`
	StudentID    string   `json:"studentId" yaml:"studentId"`
	StudentEmail string   `json:"studentEmail" yaml:"studentEmail"`
	TaskIDs      []string `json:"taskIds" yaml:"taskIds"`
}

var demoTasks = []struct {
	title    string
	category string
	reward   string
}{
	{"ECサイトの商品説明を英訳", models.CategoryTranslation, "8,000円"},
	{"新商品のSNS投稿案を作成", models.CategorySNS, "5,000円"},
	{"競合サービスのリサーチ", models.CategoryResearch, "10,000円"},
	{"アンケート結果のデータ入力", models.CategoryDataEntry, "4,000円"},
	{"採用ページのバナーデザイン", models.CategoryDesign, "12,000円"},
	{"社内ツールの小さな改修", models.CategoryProgramming, "20,000円"},
	{"学園祭ブースの運営補助", models.CategoryEvent, "6,000円"},
}

func seed(ctx context.Context, sc *services.ServiceCollection, logger *zap.Logger) (*seedSummary, error) {
	company, err := demoAccount(ctx, sc, logger, &session.RegisterRequest{
		Type:               models.UserTypeCompany,
		Email:              "demo-company@bridgeus.example",
		Password:           seedPassword,
		CompanyName:        "BridgeUs デモ株式会社",
		RepresentativeName: "山田 花子",
	})
	if err != nil {
		return nil, err
	}
	student, err := demoAccount(ctx, sc, logger, &session.RegisterRequest{
		Type:        models.UserTypeStudent,
		Email:       "demo-student@bridgeus.example",
		Password:    seedPassword,
		DisplayName: "佐藤 太郎",
		University:  "ブリッジ大学",
		Faculty:     "経済学部",
		Year:        3,
	})
	if err != nil {
		return nil, err
	}

	summary := &seedSummary{
		CompanyID:    company.GetID(),
		CompanyEmail: company.GetEmail(),
		StudentID:    student.GetID(),
		StudentEmail: student.GetEmail(),
	}
	for i := 0; i < seedTasks; i++ {
		demo := demoTasks[i%len(demoTasks)]
		task, err := sc.TaskService.CreateTask(ctx, company.GetID(), &services.TaskInput{
			Title:       demo.title,
			Description: "bridgectl seed で作成されたデモタスクです。",
			Reward:      demo.reward,
			Categories:  []string{demo.category},
			Status:      models.TaskStatusPublished,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create demo task %q: %w", demo.title, err)
		}
		summary.TaskIDs = append(summary.TaskIDs, task.ID)
	}
	return summary, nil
}

// demoAccount registers req, or signs in when the account already exists
func demoAccount(ctx context.Context, sc *services.ServiceCollection, logger *zap.Logger, req *session.RegisterRequest) (models.User, error) {
	s := session.New(sc.AuthService, sc.UserService, logger, session.WithClientInfo("bridgectl", ""))
	defer s.Close()

	user, err := s.Register(ctx, req)
	if err == nil {
		return user, nil
	}
	if services.AuthReason(err) != services.ReasonEmailInUse {
		return nil, fmt.Errorf("failed to register %s: %w", req.Email, err)
	}

	user, err = s.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in %s: %w", req.Email, err)
	}
	return user, nil
}
