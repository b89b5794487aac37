package cvcmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ezycv/internal/cv"
)

// editCmd 下的子命令只改本地草稿，不访问服务端。
var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the local CV draft",
}

var templateCmd = &cobra.Command{
	Use:   "template <id>",
	Short: "Switch the draft template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)

		if !cv.ValidTemplate(args[0]) {
			return fmt.Errorf("unknown template %q, run 'ezycv cv templates' for the catalog", args[0])
		}
		if err := app.CVStore.SetTemplate(args[0]); err != nil {
			return err
		}

		fmt.Printf("Template set to %s\n", args[0])
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary <text>",
	Short: "Set the professional summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return appFrom(cmd).CVStore.SetSummary(args[0])
	},
}

var (
	personalName  string
	personalTitle string
	personalEmail string
	personalPhone string
	personalCity  string
)

var personalCmd = &cobra.Command{
	Use:   "personal",
	Short: "Update contact details on the draft",
	RunE: func(cmd *cobra.Command, _ []string) error {
		patch := cv.PersonalInfo{
			FullName: personalName,
			JobTitle: personalTitle,
			Email:    personalEmail,
			Phone:    personalPhone,
			City:     personalCity,
		}
		return appFrom(cmd).CVStore.UpdatePersonalInfo(patch)
	},
}

var (
	expTitle   string
	expCompany string
	expStart   string
	expEnd     string
	expCurrent bool
	expDesc    string
)

var addExperienceCmd = &cobra.Command{
	Use:   "add-experience",
	Short: "Add a work experience entry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		entry := cv.Experience{
			JobTitle:    expTitle,
			Company:     expCompany,
			StartDate:   expStart,
			EndDate:     expEnd,
			Current:     expCurrent,
			Description: expDesc,
		}
		id, err := appFrom(cmd).CVStore.AddExperience(entry)
		if err != nil {
			return err
		}
		fmt.Printf("Added experience entry %d\n", id)
		return nil
	},
}

var removeExperienceCmd = &cobra.Command{
	Use:   "remove-experience <entry-id>",
	Short: "Remove a work experience entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if _, err := fmt.Sscan(args[0], &id); err != nil {
			return fmt.Errorf("invalid entry id %q", args[0])
		}
		return appFrom(cmd).CVStore.RemoveExperience(id)
	},
}

var (
	skillName  string
	skillLevel string
)

var addSkillCmd = &cobra.Command{
	Use:   "add-skill",
	Short: "Add a skill entry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := appFrom(cmd).CVStore.AddSkill(cv.Skill{Name: skillName, Level: skillLevel})
		if err != nil {
			return err
		}
		fmt.Printf("Added skill entry %d\n", id)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current draft as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		doc := appFrom(cmd).DraftDocument()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the local draft",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := appFrom(cmd).CVStore.Reset(); err != nil {
			return err
		}
		fmt.Println("Draft cleared.")
		return nil
	},
}

func init() {
	personalCmd.Flags().StringVar(&personalName, "name", "", "full name")
	personalCmd.Flags().StringVar(&personalTitle, "title", "", "job title")
	personalCmd.Flags().StringVar(&personalEmail, "email", "", "contact email")
	personalCmd.Flags().StringVar(&personalPhone, "phone", "", "contact phone")
	personalCmd.Flags().StringVar(&personalCity, "city", "", "city")

	addExperienceCmd.Flags().StringVar(&expTitle, "title", "", "job title")
	addExperienceCmd.Flags().StringVar(&expCompany, "company", "", "company name")
	addExperienceCmd.Flags().StringVar(&expStart, "start", "", "start date (YYYY-MM)")
	addExperienceCmd.Flags().StringVar(&expEnd, "end", "", "end date (YYYY-MM)")
	addExperienceCmd.Flags().BoolVar(&expCurrent, "current", false, "currently working here")
	addExperienceCmd.Flags().StringVar(&expDesc, "description", "", "role description")
	_ = addExperienceCmd.MarkFlagRequired("title")
	_ = addExperienceCmd.MarkFlagRequired("company")

	addSkillCmd.Flags().StringVar(&skillName, "name", "", "skill name")
	addSkillCmd.Flags().StringVar(&skillLevel, "level", "", "proficiency level")
	_ = addSkillCmd.MarkFlagRequired("name")

	editCmd.AddCommand(templateCmd)
	editCmd.AddCommand(summaryCmd)
	editCmd.AddCommand(personalCmd)
	editCmd.AddCommand(addExperienceCmd)
	editCmd.AddCommand(removeExperienceCmd)
	editCmd.AddCommand(addSkillCmd)
}
