package app

// Command はwebtecバイナリのサブコマンド。
type Command string

// サブコマンド一覧。
// healthcheckはdistrolessイメージにシェルやcurlが無いため、バイナリ自身でDockerのHEALTHCHECKを行う。
const (
	CommandServe       Command = "serve"
	CommandMigrate     Command = "migrate"
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[Command]bool{
	CommandServe:       true,
	CommandMigrate:     true,
	CommandHealthcheck: true,
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 未指定・未知の値はserveとして扱う。
func ParseCommand(args []string) Command {
	if len(args) > 0 && knownCommands[Command(args[0])] {
		return Command(args[0])
	}
	return CommandServe
}
