// SPDX-License-Identifier: EPL-2.0

package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// renderer
		"Decoder %s initialized in %dms":                     "デコーダー %s を %dms で初期化しました",
		"Decoder %s released":                                "デコーダー %s を解放しました",
		"Input format changed: %s":                           "入力フォーマットが変更されました: %s",
		"Reinitialization state %s -> %s":                    "再初期化状態 %s -> %s",
		"Waiting for DRM keys":                               "DRM キーを待機しています",
		"Output stream ended":                                "出力ストリームが終了しました",
		"Position reset to %dus":                             "再生位置を %dus にリセットしました",
		"Audio sink underrun: buffer=%d bytes, elapsed=%dms": "オーディオシンクのアンダーラン: バッファ=%d バイト, 経過=%dms",
		"Renderer disabled":                                  "レンダラーを無効化しました",

		// drm
		"DRM session opened for %d key(s)":  "%d 個のキーで DRM セッションを開きました",
		"DRM keys loaded":                   "DRM キーを読み込みました",
		"DRM session failed: %v":            "DRM セッションが失敗しました: %v",
		"DRM session released":              "DRM セッションを解放しました",
		"Reusing DRM session for %d key(s)": "%d 個のキーの DRM セッションを再利用します",

		// source
		"Source opened: %s":             "ソースを開きました: %s",
		"Source track: %s":              "ソーストラック: %s",
		"Source ended after %d samples": "ソースは %d サンプルで終了しました",
		"Source seek to %dus":           "ソースを %dus にシークします",

		// sink
		"Sink configured: %d Hz, %d channel(s), %s":   "シンクを設定しました: %d Hz, %d チャンネル, %s",
		"Sink wrote %d frames":                        "シンクは %d フレームを書き込みました",
		"Sink discontinuity: expected %dus, got %dus": "シンクの不連続: 期待値 %dus, 実際 %dus",

		// playback
		"Playing %s":                            "%s を再生しています",
		"Playback finished in %s":               "再生が %s で完了しました",
		"Playback position: %.2fs":              "再生位置: %.2f 秒",
		"Seeking to %.2fs":                      "%.2f 秒にシークします",
		"Playback stopped":                      "再生を停止しました",
		"Playback failed: %v":                   "再生に失敗しました: %v",
		"Loaded configuration: %s":              "設定を読み込みました: %s",
		"Received signal, stopping":             "シグナルを受信しました。停止します",
		"Buffering at %.2fs":                    "%.2f 秒でバッファリング中",
		"Close stream: %v":                      "ストリームのクローズに失敗しました: %v",
		"Playback position: %.2fs / %.2fs (%s)": "再生位置: %.2f 秒 / %.2f 秒 (%s)",
		"Rendered %s: %d frames, %s decoder":    "%s を書き出しました: %d フレーム, デコーダー %s",
		"audrender version %s":                  "audrender バージョン %s",
	})
}
