package auth

import (
	"fmt"
	"strings"
)

// ShowCredentialGuide prints where to obtain the osu! API credentials
func ShowCredentialGuide() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("osu! API CREDENTIALS")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
	fmt.Println("osufetch needs two kinds of credentials from your osu! account settings")
	fmt.Println("(https://osu.ppy.sh/home/account/edit):")
	fmt.Println()
	fmt.Println("1. Legacy API key, used to look players up by name")
	fmt.Println("   - Scroll to 'Legacy API' and create a key")
	fmt.Println("   - Any application name and URL will do")
	fmt.Println()
	fmt.Println("2. OAuth client, used to read recent scores")
	fmt.Println("   - Scroll to 'OAuth' and choose 'New OAuth Application'")
	fmt.Println("   - Leave the callback URL empty")
	fmt.Println("   - Copy the client ID and client secret")
	fmt.Println()
	fmt.Println("The values are stored in the system keyring when available and in an")
	fmt.Println("encrypted file otherwise. They can also be supplied through")
	fmt.Println("OSUFETCH_API_KEY, OSUFETCH_CLIENT_ID and OSUFETCH_CLIENT_SECRET.")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
}
