package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/kazz187/keeperd/internal/approval"
	"github.com/kazz187/keeperd/internal/eventbus"
	"github.com/kazz187/keeperd/internal/injector"
	"github.com/kazz187/keeperd/internal/locker"
	"github.com/kazz187/keeperd/internal/request"
	"github.com/kazz187/keeperd/pkg/codec"
)

var (
	app = kingpin.New("keeperctl", "Operate and answer a keeperd broker")

	addr    = app.Flag("addr", "Broker base URL").Envar("KEEPER_ADDR").Default("http://127.0.0.1:8547").String()
	apiKey  = app.Flag("api-key", "Broker API key").Envar("KEEPER_API_KEY").Required().String()
	timeout = app.Flag("timeout", "Timeout for non streaming calls").Default("30s").Duration()

	statusCmd = app.Command("status", "Show whether the keeper is set up and unlocked")
	setupCmd  = app.Command("setup", "Set the keeper password")
	unlockCmd = app.Command("unlock", "Unlock the keeper")
	lockCmd   = app.Command("lock", "Lock the keeper")

	requestsCmd = app.Command("requests", "List pending requests")

	acceptCmd         = app.Command("accept", "Accept a pending request")
	acceptID          = acceptCmd.Arg("id", "Request ID").Required().String()
	acceptSkipApprove = acceptCmd.Flag("skip-approve", "Let the origin prove without asking again (connect requests)").Bool()

	rejectCmd    = app.Command("reject", "Reject a pending request")
	rejectID     = rejectCmd.Arg("id", "Request ID").Required().String()
	rejectReason = rejectCmd.Flag("reason", "Reason handed to the requester").String()

	permissionsCmd = app.Command("permissions", "List approved origins")

	permitCmd         = app.Command("permit", "Approve an origin")
	permitOrigin      = permitCmd.Arg("origin", "Web origin, e.g. https://app.example").Required().String()
	permitSkipApprove = permitCmd.Flag("skip-approve", "Let the origin prove without asking").Bool()

	revokeCmd    = app.Command("revoke", "Remove an origin's approval")
	revokeOrigin = revokeCmd.Arg("origin", "Web origin").Required().String()

	backupCmd = app.Command("backup", "Write a password protected backup of the approvals")
	backupOut = backupCmd.Flag("out", "Output file").Short('o').Required().String()

	restoreCmd  = app.Command("restore", "Restore approvals from a backup")
	restoreFile = restoreCmd.Arg("file", "Backup file").Required().ExistingFile()

	connectCmd    = app.Command("connect", "Call the injector Connect RPC as an origin")
	connectOrigin = connectCmd.Arg("origin", "Web origin").Required().String()

	eventsCmd   = app.Command("events", "Stream broker events")
	eventsTypes = eventsCmd.Flag("type", "Event type to include; repeatable").Strings()
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	dimColor  = color.New(color.Faint)
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := newHTTPClient(*apiKey, 0)
	api := NewAPIClient(*addr, httpClient)

	var err error
	if command == eventsCmd.FullCommand() {
		err = handleEvents(ctx, httpClient)
	} else {
		callCtx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		err = dispatch(callCtx, command, api, httpClient)
	}
	app.FatalIfError(err, "%s", command)
}

func dispatch(ctx context.Context, command string, api *APIClient, httpClient *http.Client) error {
	switch command {
	case statusCmd.FullCommand():
		return handleStatus(ctx, api)
	case setupCmd.FullCommand():
		pw, err := readNewPassword()
		if err != nil {
			return err
		}
		if err := api.Do(ctx, http.MethodPost, "/setup", map[string]string{"password": pw}, nil); err != nil {
			return err
		}
		okColor.Println("keeper password set")
		return nil
	case unlockCmd.FullCommand():
		pw, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		if err := api.Do(ctx, http.MethodPost, "/unlock", map[string]string{"password": pw}, nil); err != nil {
			return err
		}
		okColor.Println("unlocked")
		return nil
	case lockCmd.FullCommand():
		if err := api.Do(ctx, http.MethodPost, "/lock", nil, nil); err != nil {
			return err
		}
		warnColor.Println("locked")
		return nil
	case requestsCmd.FullCommand():
		return handleRequests(ctx, api)
	case acceptCmd.FullCommand():
		return api.Do(ctx, http.MethodPost, "/requests/"+url.PathEscape(*acceptID)+"/accept",
			injector.ConnectDecision{CanSkipApprove: *acceptSkipApprove}, nil)
	case rejectCmd.FullCommand():
		return api.Do(ctx, http.MethodPost, "/requests/"+url.PathEscape(*rejectID)+"/reject",
			map[string]string{"reason": *rejectReason}, nil)
	case permissionsCmd.FullCommand():
		return handlePermissions(ctx, api)
	case permitCmd.FullCommand():
		return api.Do(ctx, http.MethodPut, "/permissions/"+url.PathEscape(*permitOrigin),
			map[string]bool{"canSkipApprove": *permitSkipApprove}, nil)
	case revokeCmd.FullCommand():
		return api.Do(ctx, http.MethodDelete, "/permissions/"+url.PathEscape(*revokeOrigin), nil, nil)
	case backupCmd.FullCommand():
		return handleBackup(ctx, api)
	case restoreCmd.FullCommand():
		return handleRestore(ctx, api)
	case connectCmd.FullCommand():
		return handleConnect(ctx, httpClient)
	}
	return fmt.Errorf("unknown command %q", command)
}

func handleStatus(ctx context.Context, api *APIClient) error {
	var st locker.Status
	if err := api.Do(ctx, http.MethodGet, "/status", nil, &st); err != nil {
		return err
	}
	switch {
	case !st.IsInitialized:
		warnColor.Println("not set up")
	case st.IsUnlocked:
		okColor.Println("unlocked")
	default:
		warnColor.Println("locked")
	}
	return nil
}

func handleRequests(ctx context.Context, api *APIClient) error {
	var pending []struct {
		ID        string          `json:"id"`
		Type      request.Type    `json:"type"`
		Payload   json.RawMessage `json:"payload"`
		CreatedAt time.Time       `json:"createdAt"`
	}
	if err := api.Do(ctx, http.MethodGet, "/requests", nil, &pending); err != nil {
		return err
	}
	if len(pending) == 0 {
		dimColor.Println("no pending requests")
		return nil
	}
	for _, p := range pending {
		fmt.Printf("%s  %-16s %s  %s\n", okColor.Sprint(p.ID), p.Type, dimColor.Sprint(p.CreatedAt.Format(time.DateTime)), p.Payload)
	}
	return nil
}

func handlePermissions(ctx context.Context, api *APIClient) error {
	var records []approval.Record
	if err := api.Do(ctx, http.MethodGet, "/permissions", nil, &records); err != nil {
		return err
	}
	if len(records) == 0 {
		dimColor.Println("no approved origins")
		return nil
	}
	for _, r := range records {
		skip := dimColor.Sprint("asks before proving")
		if r.CanSkipApprove {
			skip = warnColor.Sprint("proves without asking")
		}
		fmt.Printf("%s  %s\n", r.URLOrigin, skip)
	}
	return nil
}

func handleBackup(ctx context.Context, api *APIClient) error {
	pw, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	var res struct {
		Backup *string `json:"backup"`
	}
	if err := api.Do(ctx, http.MethodPost, "/backup/download", map[string]string{"password": pw}, &res); err != nil {
		return err
	}
	if res.Backup == nil {
		warnColor.Println("nothing to back up")
		return nil
	}
	if err := os.WriteFile(*backupOut, []byte(*res.Backup), 0o600); err != nil {
		return err
	}
	okColor.Printf("backup written to %s\n", *backupOut)
	return nil
}

func handleRestore(ctx context.Context, api *APIClient) error {
	data, err := os.ReadFile(*restoreFile)
	if err != nil {
		return err
	}
	pw, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	body := map[string]string{"backup": string(data), "password": pw}
	if err := api.Do(ctx, http.MethodPost, "/backup/upload", body, nil); err != nil {
		return err
	}
	okColor.Println("approvals restored")
	return nil
}

func handleConnect(ctx context.Context, httpClient *http.Client) error {
	client := injector.NewInjectorClient(httpClient, *addr, connect.WithCodec(codec.ConnectJSON{}))
	req := connect.NewRequest(&injector.ConnectRequest{})
	req.Header().Set("Origin", *connectOrigin)
	res, err := client.Connect(ctx, req)
	if err != nil {
		return err
	}
	if !res.Msg.IsApproved {
		warnColor.Printf("%s was not approved\n", *connectOrigin)
		return nil
	}
	okColor.Printf("%s approved (canSkipApprove=%t)\n", *connectOrigin, res.Msg.CanSkipApprove)
	return nil
}

func handleEvents(ctx context.Context, httpClient *http.Client) error {
	types := make([]eventbus.EventType, 0, len(*eventsTypes))
	for _, t := range *eventsTypes {
		types = append(types, eventbus.EventType(t))
	}
	client := eventbus.NewEventClient(httpClient, *addr, connect.WithCodec(codec.ConnectCBOR{}))
	stream, err := client.Subscribe(ctx, connect.NewRequest(&eventbus.SubscribeRequest{EventTypes: types}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		e := stream.Msg()
		fmt.Printf("%s  %-20s %s %v\n", dimColor.Sprint(e.CreatedAt.Format(time.TimeOnly)), okColor.Sprint(e.Type), e.ResourceID, e.Metadata)
	}
	if ctx.Err() != nil {
		return nil
	}
	return stream.Err()
}
