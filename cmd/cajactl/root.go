package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"blendcaja/internal/terminal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd is the base command; every subcommand talks to the server through
// one terminal.Caja built in PersistentPreRunE.
var rootCmd = &cobra.Command{
	Use:   "cajactl",
	Short: "Caja de punto de venta: apertura, movimientos, cierre e historial",
	Long: `cajactl opera la caja de un punto de venta contra el servidor de caja.

Configuración por flags o variables de entorno CAJACTL_*:
  CAJACTL_SERVER          URL del servidor (default http://localhost:8000)
  CAJACTL_TOKEN           JWT del operador
  CAJACTL_PUNTO_DE_VENTA  punto de venta (0 = el del token)
  CAJACTL_OUTPUT          table | json | yaml

Ejemplos:
  cajactl abrir --monto 5000
  cajactl venta --monto 1000 --metodo efectivo
  cajactl venta --monto 1000 --pago efectivo=600 --pago tarjeta_credito=400
  cajactl cerrar --contado 6150`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("verbose") {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		}
		switch viper.GetString("output") {
		case "table", "json", "yaml":
		default:
			return fmt.Errorf("formato de salida desconocido %q (table, json, yaml)", viper.GetString("output"))
		}
		transport := terminal.NewHTTPTransport(viper.GetString("server"), viper.GetString("token"), viper.GetDuration("timeout"))
		terminalCaja = terminal.New(transport, viper.GetInt("punto_de_venta"), 0)
		return nil
	},
}

// terminalCaja is the till core shared by all subcommands.
var terminalCaja *terminal.Caja

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	pf := rootCmd.PersistentFlags()
	pf.String("server", "http://localhost:8000", "URL del servidor de caja")
	pf.String("token", "", "JWT del operador")
	pf.Int("punto-de-venta", 0, "punto de venta (0 = el del token o el default del servidor)")
	pf.StringP("output", "o", "table", "formato de salida: table, json, yaml")
	pf.Duration("timeout", 15*time.Second, "timeout por llamada")
	pf.BoolP("verbose", "v", false, "log de depuración")

	viper.SetEnvPrefix("CAJACTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, name := range []string{"server", "token", "output", "timeout", "verbose"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}
	_ = viper.BindPFlag("punto_de_venta", pf.Lookup("punto-de-venta"))
}
