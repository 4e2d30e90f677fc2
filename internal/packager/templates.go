package packager

// fallbackMain is written when the artifact carries no source.
const fallbackMain = `import logging
from telegram import Update
from telegram.ext import Application, CommandHandler, MessageHandler, filters, ContextTypes
from config import Config

logging.basicConfig(
    format='%(asctime)s - %(name)s - %(levelname)s - %(message)s',
    level=logging.INFO
)
logger = logging.getLogger(__name__)


async def start(update: Update, context: ContextTypes.DEFAULT_TYPE):
    await update.message.reply_text(
        f"Привет! Я бот, созданный с помощью BotForge.\n"
        f"Твой ID: {update.effective_user.id}"
    )


async def help_command(update: Update, context: ContextTypes.DEFAULT_TYPE):
    await update.message.reply_text(
        "Доступные команды:\n"
        "/start - Начать работу\n"
        "/help - Показать помощь"
    )


async def echo(update: Update, context: ContextTypes.DEFAULT_TYPE):
    await update.message.reply_text(update.message.text)


def main():
    application = Application.builder().token(Config.BOT_TOKEN).build()
    application.add_handler(CommandHandler("start", start))
    application.add_handler(CommandHandler("help", help_command))
    application.add_handler(MessageHandler(filters.TEXT & ~filters.COMMAND, echo))
    print("Бот запущен!")
    application.run_polling()


if __name__ == '__main__':
    main()
`

// configPy references environment variable names only.
const configPy = `import os
from dotenv import load_dotenv

load_dotenv()


class Config:
    BOT_TOKEN = os.getenv('BOT_TOKEN')
    WEBHOOK_URL = os.getenv('WEBHOOK_URL')
    HOST = os.getenv('HOST', '0.0.0.0')
    PORT = int(os.getenv('PORT', 8000))
    DEBUG = os.getenv('DEBUG', 'False').lower() == 'true'

    ADMIN_IDS = [int(x) for x in os.getenv('ADMIN_IDS', '').split(',') if x]
    LOG_LEVEL = os.getenv('LOG_LEVEL', 'INFO')
`

const envExample = `BOT_TOKEN=your_bot_token_here
WEBHOOK_URL=https://yourdomain.com/webhook
HOST=0.0.0.0
PORT=8000
DEBUG=False
ADMIN_IDS=123456789,987654321
LOG_LEVEL=INFO
`

const dockerfile = `FROM python:3.11-slim

WORKDIR /app

COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt

COPY . .

CMD ["python", "main.py"]
`

const readmeTemplate = "# {{.Name}}\n\n" +
	"{{.Description}}\n\n" +
	"## Установка и запуск\n\n" +
	"### 1. Установка зависимостей\n" +
	"```bash\npip install -r requirements.txt\n```\n\n" +
	"### 2. Настройка переменных окружения\n" +
	"Скопируйте `.env.example` в `.env` и заполните значения:\n" +
	"```env\n" + envExample + "```\n\n" +
	"### 3. Запуск бота\n" +
	"```bash\npython main.py\n```\n\n" +
	"## Развертывание с Docker\n\n" +
	"### 1. Сборка образа\n" +
	"```bash\ndocker build -t {{.Slug}} .\n```\n\n" +
	"### 2. Запуск контейнера\n" +
	"```bash\ndocker run -d --name {{.Slug}} --env-file .env {{.Slug}}\n```\n\n" +
	"Или через compose:\n" +
	"```bash\ndocker compose up -d\n```\n\n" +
	"## Развертывание на сервере\n\n" +
	"### 1. Загрузка файлов\n" +
	"Загрузите все файлы на ваш сервер.\n\n" +
	"### 2. Установка systemd сервиса\n" +
	"```bash\n./install_systemd.sh\n```\n\n" +
	"### 3. Запуск сервиса\n" +
	"```bash\nsudo systemctl start {{.Slug}}\n```\n\n" +
	"## Мониторинг\n\n" +
	"Проверьте статус бота:\n" +
	"```bash\nsudo systemctl status {{.Slug}}\n```\n\n" +
	"Просмотр логов:\n" +
	"```bash\nsudo journalctl -u {{.Slug}} -f\n```\n"

const composeTemplate = `services:
  {{.Slug}}:
    build: .
    container_name: {{.Slug}}
    restart: unless-stopped
    env_file:
      - .env
    ports:
      - "8000:8000"
    volumes:
      - ./logs:/app/logs
`

const deployTemplate = `#!/bin/bash
set -e

echo "Развертывание {{.Name}}..."

if [ ! -f .env ]; then
    echo "Файл .env не найден! Создайте его на основе .env.example"
    exit 1
fi

pip install -r requirements.txt
mkdir -p logs

python main.py
`

const systemdTemplate = `#!/bin/bash
set -e

BOT_NAME="{{.Slug}}"
SERVICE_FILE="/etc/systemd/system/$BOT_NAME.service"
CURRENT_DIR=$(pwd)

echo "Создаем systemd сервис для $BOT_NAME..."

sudo tee "$SERVICE_FILE" > /dev/null <<EOF
[Unit]
Description={{.Name}} Bot
After=network.target

[Service]
Type=simple
User=$USER
WorkingDirectory=$CURRENT_DIR
ExecStart=/usr/bin/python3 main.py
Restart=always
RestartSec=10

[Install]
WantedBy=multi-user.target
EOF

sudo systemctl daemon-reload
sudo systemctl enable "$BOT_NAME"

echo "Сервис $BOT_NAME создан и включен"
echo "Запуск: sudo systemctl start $BOT_NAME"
echo "Статус: sudo systemctl status $BOT_NAME"
`
