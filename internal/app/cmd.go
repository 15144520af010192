package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	// 更新ジョブも同じプロセスで動かす。
	CommandServe Command = "serve"
	// CommandRefresh はアカウント情報を1回取得して標準出力に書き出すことを示す。
	CommandRefresh Command = "refresh"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "refresh":
		return CommandRefresh
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
