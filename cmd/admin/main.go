package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/floripa/internal/accounts"
	"github.com/gestaozabele/floripa/internal/auth"
	"github.com/gestaozabele/floripa/internal/db"
	"github.com/gestaozabele/floripa/internal/repo"
	"github.com/gestaozabele/floripa/internal/validation"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "hash" {
		if err := runHash(args); err != nil {
			log.Fatal().Err(err).Msg("falha ao gerar hash")
		}
		return
	}

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN ou DATABASE_URL")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	queries := repo.New(pool)

	switch cmd {
	case "create-admin":
		if err := runCreateAdmin(ctx, queries, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao criar administrador")
		}
	case "promote":
		if err := runPromote(ctx, queries, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao promover conta")
		}
	case "reactivate":
		service := accounts.NewService(accounts.NewRepository(pool), nil, time.Local, 0)
		if err := runReactivate(ctx, service, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao reativar perfil")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "admin CLI")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  admin create-admin --username defesacivil --email dc@pmf.sc.gov.br --password 'senha forte' [--first-name Defesa --last-name Civil]")
	fmt.Fprintln(os.Stderr, "  admin promote --login maria")
	fmt.Fprintln(os.Stderr, "  admin reactivate --cpf 529.982.247-25")
	fmt.Fprintln(os.Stderr, "  admin hash <senha>")
}

func runHash(args []string) error {
	if len(args) < 1 {
		return errors.New("informe a senha")
	}
	hash, err := auth.Hash(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func runCreateAdmin(ctx context.Context, queries *repo.Queries, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		username  = fs.String("username", "", "nome de usuário")
		email     = fs.String("email", "", "email de acesso")
		password  = fs.String("password", "", "senha inicial")
		firstName = fs.String("first-name", "", "nome")
		lastName  = fs.String("last-name", "", "sobrenome")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cleanUsername, err := validation.Username(*username)
	if err != nil {
		return err
	}
	cleanEmail, err := validation.Email(*email)
	if err != nil {
		return err
	}
	if err := validation.Password(*password, *password); err != nil {
		return err
	}

	hash, err := auth.Hash(*password)
	if err != nil {
		return err
	}

	account, err := queries.CreateAccount(ctx, repo.CreateAccountParams{
		ID:           uuid.New(),
		Username:     cleanUsername,
		Email:        cleanEmail,
		FirstName:    strings.TrimSpace(*firstName),
		LastName:     strings.TrimSpace(*lastName),
		PasswordHash: hash,
		IsAdmin:      true,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return errors.New("username ou email já cadastrado; use promote")
		}
		return err
	}

	return printJSON(account)
}

func runPromote(ctx context.Context, queries *repo.Queries, args []string) error {
	fs := flag.NewFlagSet("promote", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	login := fs.String("login", "", "username ou email da conta")
	revoke := fs.Bool("revoke", false, "remove o papel de administrador")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*login) == "" {
		return errors.New("login é obrigatório")
	}

	account, err := queries.GetAccountByLogin(ctx, *login)
	if err != nil {
		return err
	}
	if err := queries.SetAccountAdmin(ctx, account.ID, !*revoke); err != nil {
		return err
	}
	log.Info().Str("username", account.Username).Bool("admin", !*revoke).Msg("papel atualizado")
	return nil
}

func runReactivate(ctx context.Context, service *accounts.Service, args []string) error {
	fs := flag.NewFlagSet("reactivate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cpf := fs.String("cpf", "", "CPF do perfil")
	if err := fs.Parse(args); err != nil {
		return err
	}

	profile, err := service.ReactivateByCPF(ctx, *cpf)
	if err != nil {
		return err
	}
	return printJSON(profile)
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
