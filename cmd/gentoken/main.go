// Emite un JWT de desarrollo para probar la caja.
// Uso: go run ./cmd/gentoken -rol cajero -pdv 1
// Los tokens reales los emite el servicio de autenticación.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"blendcaja/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func main() {
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "secreto HS256 (default $JWT_SECRET)")
	userID := flag.String("user", "", "user_id (default: uuid nuevo)")
	username := flag.String("username", "cajero.demo", "username")
	rol := flag.String("rol", middleware.RolCajero, "cajero | supervisor | administrador")
	pdv := flag.Int("pdv", 0, "punto de venta (0 = sin asignar)")
	ttl := flag.Duration("ttl", 8*time.Hour, "vigencia del token")
	flag.Parse()

	if *secret == "" {
		log.Fatal("falta -secret o JWT_SECRET")
	}
	if *userID == "" {
		*userID = uuid.NewString()
	}

	claims := middleware.JWTClaims{
		UserID:   *userID,
		Username: *username,
		Rol:      *rol,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   *userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(*ttl)),
		},
	}
	if *pdv > 0 {
		claims.PuntoDeVenta = pdv
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*secret))
	if err != nil {
		log.Fatalf("firma: %v", err)
	}
	fmt.Println(token)
}
