package auth

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ezycv/internal/client"
	"ezycv/internal/identity"
)

// 社交登录需要调用方先在浏览器里完成 OAuth 授权，再把拿到的
// 令牌交给命令行换登录态。

var googleCmd = &cobra.Command{
	Use:   "google <id-token>",
	Short: "Log in with a Google OAuth ID token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return socialLogin(cmd, identity.ProviderGoogle, args[0])
	},
}

var facebookCmd = &cobra.Command{
	Use:   "facebook <access-token>",
	Short: "Log in with a Facebook access token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return socialLogin(cmd, identity.ProviderFacebook, args[0])
	},
}

func socialLogin(cmd *cobra.Command, providerID, token string) error {
	app := appFrom(cmd)

	ctx, cancel := requestContext(cmd)
	defer cancel()
	user, err := app.SocialLogin(ctx, providerID, token)
	if err != nil {
		var provErr *identity.ProviderError
		if errors.As(err, &provErr) {
			return fmt.Errorf("%s", client.FriendlyIdentityError(err))
		}
		return err
	}

	fmt.Printf("Logged in as %s <%s>\n", user.Name, user.Email)
	return nil
}

var (
	phoneNumber    string
	recaptchaToken string
)

var phoneCmd = &cobra.Command{
	Use:   "phone",
	Short: "Log in with a phone number and SMS code",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := appFrom(cmd)

		ctx, cancel := requestContext(cmd)
		defer cancel()
		sessionInfo, err := app.PhoneLoginStart(ctx, phoneNumber, recaptchaToken)
		if err != nil {
			return fmt.Errorf("%s", client.FriendlyIdentityError(err))
		}

		fmt.Print("SMS code: ")
		var code string
		if _, err := fmt.Scanln(&code); err != nil {
			return fmt.Errorf("read code: %w", err)
		}

		user, err := app.PhoneLoginFinish(ctx, sessionInfo, code)
		if err != nil {
			return fmt.Errorf("%s", client.FriendlyIdentityError(err))
		}

		fmt.Printf("Logged in as %s\n", user.Name)
		return nil
	},
}

func init() {
	phoneCmd.Flags().StringVar(&phoneNumber, "number", "", "phone number in E.164 format")
	phoneCmd.Flags().StringVar(&recaptchaToken, "recaptcha", "", "recaptcha token from the web widget")
	_ = phoneCmd.MarkFlagRequired("number")
}
